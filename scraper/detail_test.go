package scraper

import (
	"testing"
)

func TestExtractDetail_FullPage(t *testing.T) {
	html := loadFixture(t, "detail_full.html")
	pageURL := "https://suumo.jp/chintai/jnc_000012345678/"

	p := ExtractDetail(html, pageURL)
	if p == nil {
		t.Fatal("expected a property, got nil")
	}

	if p.URL != pageURL {
		t.Fatalf("unexpected url %s", p.URL)
	}
	if p.Title != "グランドメゾン目黒 203号室" {
		t.Fatalf("unexpected title %q", p.Title)
	}
	if p.Address != "東京都目黒区下目黒２" {
		t.Fatalf("unexpected address %q", p.Address)
	}
	if p.StationWalk != "ＪＲ山手線/目黒駅 歩8分" {
		t.Fatalf("unexpected station walk %q", p.StationWalk)
	}
	if p.Floor != "2階/5階建" {
		t.Fatalf("unexpected floor %q", p.Floor)
	}
	if p.Rent != "12.5万円" {
		t.Fatalf("unexpected rent %q", p.Rent)
	}
	if p.ManagementFee != "10000円" {
		t.Fatalf("unexpected management fee %q", p.ManagementFee)
	}
	if p.Deposit != "12.5万円" {
		t.Fatalf("unexpected deposit %q", p.Deposit)
	}
	// 礼金：なし means no charge and normalizes to the zero amount.
	if p.KeyMoney != "0円" {
		t.Fatalf("unexpected key money %q", p.KeyMoney)
	}
	if p.Layout != "1LDK" {
		t.Fatalf("unexpected layout %q", p.Layout)
	}
	if p.PropertyType != "マンション" {
		t.Fatalf("unexpected property type %q", p.PropertyType)
	}
	if p.PostedDate != "2025/08/20" {
		t.Fatalf("unexpected posted date %q", p.PostedDate)
	}
	// The hidden clip key beats the table's code.
	if p.PropertyCode != "100411505950" {
		t.Fatalf("unexpected property code %q", p.PropertyCode)
	}
}

func TestExtractDetail_MinimalPageDefaults(t *testing.T) {
	html := loadFixture(t, "detail_minimal.html")

	p := ExtractDetail(html, "https://suumo.jp/chintai/jc_000087654321/")
	if p == nil {
		t.Fatal("expected a property, got nil")
	}

	if p.Title != "物件名なし" {
		t.Fatalf("expected default title, got %q", p.Title)
	}
	// 駅徒歩 is absent; 最寄駅 is the fallback label.
	if p.StationWalk != "大阪メトロ御堂筋線/梅田駅 歩5分" {
		t.Fatalf("unexpected station walk %q", p.StationWalk)
	}
	// No clip key and no SUUMO物件コード row; 物件コード is the last fallback.
	if p.PropertyCode != "200588776655" {
		t.Fatalf("unexpected property code %q", p.PropertyCode)
	}

	for field, got := range map[string]string{
		"rent":           p.Rent,
		"management fee": p.ManagementFee,
		"deposit":        p.Deposit,
		"key money":      p.KeyMoney,
	} {
		if got != "0円" {
			t.Fatalf("expected %s to default to 0円, got %q", field, got)
		}
	}
}

func TestExtractDetail_DashMeansNoCharge(t *testing.T) {
	html := `
	<html><body>
	<ul class="property_view_note-list">
		<li><span class="property_view_note-emphasis">5.5万円</span></li>
		<li><span>管理費・共益費：-</span></li>
	</ul>
	<ul class="property_view_note-list">
		<li><span>敷金：-</span></li>
		<li><span>礼金：5.5万円</span></li>
	</ul>
	</body></html>`

	p := ExtractDetail(html, "https://suumo.jp/chintai/jnc_000011111111/")
	if p == nil {
		t.Fatal("expected a property, got nil")
	}
	if p.Rent != "5.5万円" {
		t.Fatalf("unexpected rent %q", p.Rent)
	}
	if p.ManagementFee != "0円" {
		t.Fatalf("unexpected management fee %q", p.ManagementFee)
	}
	if p.Deposit != "0円" {
		t.Fatalf("unexpected deposit %q", p.Deposit)
	}
	if p.KeyMoney != "5.5万円" {
		t.Fatalf("unexpected key money %q", p.KeyMoney)
	}
}

func TestExtractDetail_NonBreakingSpaceNormalized(t *testing.T) {
	html := "<html><body>" +
		`<ul class="property_view_note-list">` +
		`<li><span class="property_view_note-emphasis">8万円</span></li>` +
		"<li><span>管理費・共益費：5000円\u00A0（税込）</span></li>" +
		`</ul></body></html>`

	p := ExtractDetail(html, "https://suumo.jp/chintai/jnc_000022222222/")
	if p == nil {
		t.Fatal("expected a property, got nil")
	}
	if p.ManagementFee != "5000円 （税込）" {
		t.Fatalf("unexpected management fee %q", p.ManagementFee)
	}
}

func TestTableValue_FirstMatchingRowWins(t *testing.T) {
	html := `
	<html><body>
	<table>
		<tr><th>所在地</th><td>東京都渋谷区</td></tr>
	</table>
	<table>
		<tr><th>所在地</th><td>東京都新宿区</td></tr>
	</table>
	</body></html>`

	p := ExtractDetail(html, "https://suumo.jp/chintai/jnc_000033333333/")
	if p == nil {
		t.Fatal("expected a property, got nil")
	}
	if p.Address != "東京都渋谷区" {
		t.Fatalf("expected first row to win, got %q", p.Address)
	}
}
