package export

import (
	"strings"
	"testing"

	"suumo_watcher/models"
)

func TestCSVContent(t *testing.T) {
	props := []models.Property{
		{
			URL:           "https://suumo.jp/chintai/jnc_000012345678/",
			Title:         "グランドメゾン目黒 203号室",
			Address:       "東京都目黒区下目黒２",
			StationWalk:   "ＪＲ山手線/目黒駅 歩8分",
			Floor:         "2階/5階建",
			Rent:          "12.5万円",
			ManagementFee: "10000円",
			Deposit:       "12.5万円",
			KeyMoney:      "0円",
			Layout:        "1LDK",
			Area:          "40.5m2",
			PropertyType:  "マンション",
			PropertyCode:  "100411505950",
			PostedDate:    "2025/08/20",
		},
	}

	content, err := CSVContent(props)
	if err != nil {
		t.Fatalf("csv build failed: %v", err)
	}

	if !strings.HasPrefix(content, "\uFEFF") {
		t.Fatal("content must start with a UTF-8 BOM")
	}

	lines := strings.Split(strings.TrimRight(content, "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected header + 1 record, got %d lines", len(lines))
	}
	if !strings.HasPrefix(lines[0], "\uFEFFURL,物件名,所在地") {
		t.Fatalf("unexpected header %q", lines[0])
	}
	if !strings.Contains(lines[1], "100411505950") {
		t.Fatalf("record missing property code: %q", lines[1])
	}
}

func TestCSVContent_QuotesEmbeddedCommas(t *testing.T) {
	props := []models.Property{
		{
			URL:   "https://suumo.jp/chintai/jnc_000012345678/",
			Title: "メゾン, 目黒",
		},
	}

	content, err := CSVContent(props)
	if err != nil {
		t.Fatalf("csv build failed: %v", err)
	}
	if !strings.Contains(content, `"メゾン, 目黒"`) {
		t.Fatalf("comma-bearing field must be quoted:\n%s", content)
	}
}

func TestCSVContent_EmptyInput(t *testing.T) {
	content, err := CSVContent(nil)
	if err != nil {
		t.Fatalf("csv build failed: %v", err)
	}
	lines := strings.Split(strings.TrimRight(content, "\n"), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected header only, got %d lines", len(lines))
	}
}
