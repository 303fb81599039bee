package extract

import (
	"strings"
	"testing"
	"time"
)

func TestSettlementDetailRoundTrip(t *testing.T) {
	detail := SettlementDetail{
		OfferID:          "0123456789ABCDEF",
		AuthCode:         "AUTH77",
		SettlementDate:   time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC),
		SettlementAmount: 80000,
		DiscountAmount:   8000,
		CardSuffix:       "4242",
	}
	parsed, err := ParseSettlementDetail(BuildSettlementDetail(detail))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if parsed != detail {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", parsed, detail)
	}
}

func TestParseExtractFile(t *testing.T) {
	day := time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC)
	lines := []string{
		BuildExtractHeader(ExtractHeader{CreationDate: day, SequenceID: 12}),
		BuildRedemptionDetail(RedemptionDetail{
			OfferID: "OFFER-1", AuthCode: "A1", RedemptionDate: day, PurchaseAmount: 1000, DiscountAmount: 100, CardSuffix: "1111",
		}),
		BuildSettlementDetail(SettlementDetail{
			OfferID: "OFFER-1", AuthCode: "A1", SettlementDate: day, SettlementAmount: 900, DiscountAmount: 90, CardSuffix: "1111",
		}),
		BuildExtractFooter(ExtractFooter{RecordCount: 2}),
	}
	file, err := ParseExtractFile(strings.Join(lines, "\n"))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if file.Header.SequenceID != 12 {
		t.Fatalf("expected header sequence 12, got %d", file.Header.SequenceID)
	}
	if len(file.Redemptions) != 1 || len(file.Settlements) != 1 {
		t.Fatalf("expected 1 redemption and 1 settlement, got %d/%d", len(file.Redemptions), len(file.Settlements))
	}
	if file.Settlements[0].SettlementAmount != 900 {
		t.Fatalf("expected settlement amount 900, got %d", file.Settlements[0].SettlementAmount)
	}
}

func TestParseExtractFileRejectsBadFooterCount(t *testing.T) {
	day := time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC)
	lines := []string{
		BuildExtractHeader(ExtractHeader{CreationDate: day, SequenceID: 1}),
		BuildSettlementDetail(SettlementDetail{OfferID: "O", SettlementDate: day, SettlementAmount: 1}),
		BuildExtractFooter(ExtractFooter{RecordCount: 5}),
	}
	if _, err := ParseExtractFile(strings.Join(lines, "\n")); err == nil {
		t.Fatal("expected footer count mismatch error")
	}
}

func TestParseExtractFileRejectsUnknownPrefix(t *testing.T) {
	if _, err := ParseExtractFile("X bogus"); err == nil {
		t.Fatal("expected unknown prefix error")
	}
}
