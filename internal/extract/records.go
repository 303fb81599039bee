/**
 * @description
 * Fixed-width record codec for the First Data extract file and the
 * reward-network transaction report file. Field layouts are positional:
 * alpha fields are space-padded (and truncated) to their column width,
 * numeric fields are zero-padded, and filler columns are fixed runs of
 * spaces. Writers and parsers share the same offsets so a built record
 * parses back to the original values.
 */

package extract

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// padAlpha space-pads (or truncates) an alpha field to width.
func padAlpha(value string, width int) string {
	if len(value) > width {
		return value[:width]
	}
	return value + strings.Repeat(" ", width-len(value))
}

// padNum zero-pads a non-negative numeric field to width.
func padNum(value int64, width int) string {
	s := strconv.FormatInt(value, 10)
	if len(s) > width {
		// Overflowing amounts keep the low-order digits; partners size
		// columns so this does not occur with real data.
		return s[len(s)-width:]
	}
	return strings.Repeat("0", width-len(s)) + s
}

func filler(width int) string {
	return strings.Repeat(" ", width)
}

// parseNum reads a zero-padded numeric column.
func parseNum(field string) (int64, error) {
	trimmed := strings.TrimLeft(field, "0")
	if trimmed == "" {
		return 0, nil
	}
	return strconv.ParseInt(trimmed, 10, 64)
}

// sliceField extracts [start, start+width) from a record, guarding length.
func sliceField(record string, start, width int) (string, error) {
	if len(record) < start+width {
		return "", fmt.Errorf("record too short: need %d bytes, have %d", start+width, len(record))
	}
	return record[start : start+width], nil
}

// Extract file record-type prefixes (First Data).
const (
	PrefixHeader                  = "H"
	PrefixRedemptionDetail        = "R"
	PrefixSettlementDetail        = "S"
	PrefixTransactionNotification = "T"
	PrefixFooter                  = "F"
)

// ExtractHeader is the First Data extract file header record.
type ExtractHeader struct {
	CreationDate time.Time
	SequenceID   int64
}

// ExtractFooter is the First Data extract file footer record, carrying the
// record count used to validate the body.
type ExtractFooter struct {
	RecordCount int64
}

// RedemptionDetail is one authorization-time redemption in the extract.
type RedemptionDetail struct {
	OfferID        string
	AuthCode       string
	RedemptionDate time.Time
	PurchaseAmount int64
	DiscountAmount int64
	CardSuffix     string
}

// SettlementDetail is one settled transaction in the extract.
type SettlementDetail struct {
	OfferID          string
	AuthCode         string
	SettlementDate   time.Time
	SettlementAmount int64
	DiscountAmount   int64
	CardSuffix       string
}

// TransactionNotification is an informational record in the extract.
type TransactionNotification struct {
	OfferID string
	Message string
}

const extractDateLayout = "20060102"

// Extract file layouts. Offsets are byte positions after the 1-byte prefix.
//
//	Header:      creation date (8) + sequence (6)
//	Redemption:  offer id (20) + auth code (10) + date (8) + purchase (10) + discount (10) + suffix (4)
//	Settlement:  offer id (20) + auth code (10) + date (8) + amount (10) + discount (10) + suffix (4)
//	Notification: offer id (20) + message (60)
//	Footer:      record count (9)

// BuildExtractHeader encodes a header record.
func BuildExtractHeader(h ExtractHeader) string {
	return PrefixHeader + h.CreationDate.Format(extractDateLayout) + padNum(h.SequenceID, 6)
}

// BuildSettlementDetail encodes a settlement detail record.
func BuildSettlementDetail(d SettlementDetail) string {
	return PrefixSettlementDetail +
		padAlpha(d.OfferID, 20) +
		padAlpha(d.AuthCode, 10) +
		d.SettlementDate.Format(extractDateLayout) +
		padNum(d.SettlementAmount, 10) +
		padNum(d.DiscountAmount, 10) +
		padAlpha(d.CardSuffix, 4)
}

// BuildRedemptionDetail encodes a redemption detail record.
func BuildRedemptionDetail(d RedemptionDetail) string {
	return PrefixRedemptionDetail +
		padAlpha(d.OfferID, 20) +
		padAlpha(d.AuthCode, 10) +
		d.RedemptionDate.Format(extractDateLayout) +
		padNum(d.PurchaseAmount, 10) +
		padNum(d.DiscountAmount, 10) +
		padAlpha(d.CardSuffix, 4)
}

// BuildExtractFooter encodes a footer record.
func BuildExtractFooter(f ExtractFooter) string {
	return PrefixFooter + padNum(f.RecordCount, 9)
}

// ParseSettlementDetail decodes a settlement detail record.
func ParseSettlementDetail(record string) (SettlementDetail, error) {
	var d SettlementDetail
	if !strings.HasPrefix(record, PrefixSettlementDetail) {
		return d, fmt.Errorf("not a settlement detail record")
	}
	fields := []struct {
		width int
		apply func(string) error
	}{
		{20, func(s string) error { d.OfferID = strings.TrimRight(s, " "); return nil }},
		{10, func(s string) error { d.AuthCode = strings.TrimRight(s, " "); return nil }},
		{8, func(s string) error {
			parsed, err := time.Parse(extractDateLayout, s)
			d.SettlementDate = parsed
			return err
		}},
		{10, func(s string) error { v, err := parseNum(s); d.SettlementAmount = v; return err }},
		{10, func(s string) error { v, err := parseNum(s); d.DiscountAmount = v; return err }},
		{4, func(s string) error { d.CardSuffix = strings.TrimRight(s, " "); return nil }},
	}
	offset := 1
	for _, f := range fields {
		raw, err := sliceField(record, offset, f.width)
		if err != nil {
			return d, err
		}
		if err := f.apply(raw); err != nil {
			return d, fmt.Errorf("failed to parse settlement field at offset %d: %w", offset, err)
		}
		offset += f.width
	}
	return d, nil
}

// ParseRedemptionDetail decodes a redemption detail record.
func ParseRedemptionDetail(record string) (RedemptionDetail, error) {
	var d RedemptionDetail
	if !strings.HasPrefix(record, PrefixRedemptionDetail) {
		return d, fmt.Errorf("not a redemption detail record")
	}
	settlementShaped, err := ParseSettlementDetail(PrefixSettlementDetail + record[1:])
	if err != nil {
		return d, err
	}
	d.OfferID = settlementShaped.OfferID
	d.AuthCode = settlementShaped.AuthCode
	d.RedemptionDate = settlementShaped.SettlementDate
	d.PurchaseAmount = settlementShaped.SettlementAmount
	d.DiscountAmount = settlementShaped.DiscountAmount
	d.CardSuffix = settlementShaped.CardSuffix
	return d, nil
}

// ExtractFile is a parsed First Data extract.
type ExtractFile struct {
	Header        ExtractHeader
	Redemptions   []RedemptionDetail
	Settlements   []SettlementDetail
	Notifications []TransactionNotification
	Footer        ExtractFooter
}

// ParseExtractFile parses a complete extract, validating the footer count
// against the number of body records.
func ParseExtractFile(content string) (*ExtractFile, error) {
	file := &ExtractFile{}
	sawHeader := false
	sawFooter := false
	bodyRecords := int64(0)

	for i, line := range strings.Split(strings.ReplaceAll(content, "\r\n", "\n"), "\n") {
		if line == "" {
			continue
		}
		switch line[:1] {
		case PrefixHeader:
			dateField, err := sliceField(line, 1, 8)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", i+1, err)
			}
			created, err := time.Parse(extractDateLayout, dateField)
			if err != nil {
				return nil, fmt.Errorf("line %d: bad header date: %w", i+1, err)
			}
			seqField, err := sliceField(line, 9, 6)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", i+1, err)
			}
			seq, err := parseNum(seqField)
			if err != nil {
				return nil, fmt.Errorf("line %d: bad header sequence: %w", i+1, err)
			}
			file.Header = ExtractHeader{CreationDate: created, SequenceID: seq}
			sawHeader = true
		case PrefixRedemptionDetail:
			d, err := ParseRedemptionDetail(line)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", i+1, err)
			}
			file.Redemptions = append(file.Redemptions, d)
			bodyRecords++
		case PrefixSettlementDetail:
			d, err := ParseSettlementDetail(line)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", i+1, err)
			}
			file.Settlements = append(file.Settlements, d)
			bodyRecords++
		case PrefixTransactionNotification:
			offerField, err := sliceField(line, 1, 20)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", i+1, err)
			}
			msgField, err := sliceField(line, 21, 60)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", i+1, err)
			}
			file.Notifications = append(file.Notifications, TransactionNotification{
				OfferID: strings.TrimRight(offerField, " "),
				Message: strings.TrimRight(msgField, " "),
			})
			bodyRecords++
		case PrefixFooter:
			countField, err := sliceField(line, 1, 9)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", i+1, err)
			}
			count, err := parseNum(countField)
			if err != nil {
				return nil, fmt.Errorf("line %d: bad footer count: %w", i+1, err)
			}
			file.Footer = ExtractFooter{RecordCount: count}
			sawFooter = true
		default:
			return nil, fmt.Errorf("line %d: unknown record prefix %q", i+1, line[:1])
		}
	}

	if !sawHeader || !sawFooter {
		return nil, fmt.Errorf("extract missing header or footer")
	}
	if file.Footer.RecordCount != bodyRecords {
		return nil, fmt.Errorf("footer count %d does not match %d body records", file.Footer.RecordCount, bodyRecords)
	}
	return file, nil
}
