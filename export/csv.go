package export

import (
	"bytes"
	"encoding/csv"

	"suumo_watcher/models"
)

var csvHeader = []string{
	"URL", "物件名", "所在地", "駅徒歩", "階", "賃料", "管理費",
	"敷金", "礼金", "間取り", "専有面積", "建物種別", "SUUMO物件コード", "情報更新日",
}

// CSVContent renders the records as a UTF-8 CSV document with a BOM so the
// file opens correctly in Excel.
func CSVContent(properties []models.Property) (string, error) {
	var buf bytes.Buffer
	buf.WriteString("\uFEFF")

	w := csv.NewWriter(&buf)
	if err := w.Write(csvHeader); err != nil {
		return "", err
	}
	for _, p := range properties {
		record := []string{
			p.URL, p.Title, p.Address, p.StationWalk, p.Floor, p.Rent, p.ManagementFee,
			p.Deposit, p.KeyMoney, p.Layout, p.Area, p.PropertyType, p.PropertyCode, p.PostedDate,
		}
		if err := w.Write(record); err != nil {
			return "", err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}
	return buf.String(), nil
}
