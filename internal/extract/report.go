/**
 * @description
 * Builder and parser for the reward-network transaction report file: one
 * header line followed by one 'S'-prefixed detail line per cleared
 * transaction. Column widths are fixed; merchant names longer than their
 * column are truncated, amounts are zero-padded cents.
 *
 * File naming: <decoration><yyyyMMdd>.txt
 */

package extract

import (
	"fmt"
	"strings"
	"time"
)

// Report column layout (byte offsets within a detail line):
//
//	0     'S'
//	1-6   sequence, zero-padded
//	7-21  merchant id, space-padded (15)
//	22-46 merchant name, space-padded (25)
//	47-52 date MMddyy
//	53-62 amount in cents, zero-padded (10)
//	63-66 card last four (4)
//	67-68 brand code VI/MC (2)
//	69-74 time HHmmss
//	75    new/repeat indicator N/R
//	76-97 transaction id, space-padded (22)
//	98-117 city, space-padded (20)
//	118-119 state (2)
//	120-128 zip, space-padded (9)
//	129-138 filler (10)
const (
	reportMerchantIDWidth   = 15
	reportMerchantNameWidth = 25
	reportAmountWidth       = 10
	reportTransactionIDWidth = 22
	reportCityWidth         = 20
	reportZipWidth          = 9
	reportFillerWidth       = 10
	reportFilenameWidth     = 22
	reportTransmissionWidth = 15
	headerFillerWidth       = 20
)

const (
	reportDateLayout = "010206"
	reportTimeLayout = "150405"
)

// TransactionRecord is one cleared transaction destined for the report file.
type TransactionRecord struct {
	Sequence       int64
	MerchantID     string
	MerchantName   string
	Timestamp      time.Time
	AmountCents    int64
	CardLastFour   string
	BrandCode      string
	RepeatCustomer bool
	TransactionID  string
	City           string
	State          string
	Zip            string
}

// ReportHeader describes the report file's header line.
type ReportHeader struct {
	Sequence       int64
	Date           time.Time
	Filename       string
	TrailingSequence int64
	TransmissionID string
}

// BuildReportHeader encodes the header line.
func BuildReportHeader(h ReportHeader) string {
	return "H" +
		padNum(h.Sequence, 6) +
		h.Date.Format(reportDateLayout) +
		padAlpha(h.Filename, reportFilenameWidth) +
		padNum(h.TrailingSequence, 6) +
		padAlpha(h.TransmissionID, reportTransmissionWidth) +
		filler(headerFillerWidth)
}

// BuildDetailLine encodes one transaction as an 'S' detail line.
func BuildDetailLine(r TransactionRecord) string {
	indicator := "N"
	if r.RepeatCustomer {
		indicator = "R"
	}
	return "S" +
		padNum(r.Sequence, 6) +
		padAlpha(r.MerchantID, reportMerchantIDWidth) +
		padAlpha(r.MerchantName, reportMerchantNameWidth) +
		r.Timestamp.Format(reportDateLayout) +
		padNum(r.AmountCents, reportAmountWidth) +
		padAlpha(r.CardLastFour, 4) +
		padAlpha(r.BrandCode, 2) +
		r.Timestamp.Format(reportTimeLayout) +
		indicator +
		padAlpha(r.TransactionID, reportTransactionIDWidth) +
		padAlpha(r.City, reportCityWidth) +
		padAlpha(r.State, 2) +
		padAlpha(r.Zip, reportZipWidth) +
		filler(reportFillerWidth)
}

// ParseDetailLine decodes an 'S' detail line back into a TransactionRecord.
// Values reflect any truncation/padding applied at field boundaries.
func ParseDetailLine(line string) (TransactionRecord, error) {
	var r TransactionRecord
	if !strings.HasPrefix(line, "S") {
		return r, fmt.Errorf("not a detail line")
	}

	offset := 1
	next := func(width int) (string, error) {
		raw, err := sliceField(line, offset, width)
		offset += width
		return raw, err
	}

	seqField, err := next(6)
	if err != nil {
		return r, err
	}
	if r.Sequence, err = parseNum(seqField); err != nil {
		return r, fmt.Errorf("bad sequence: %w", err)
	}

	merchantID, err := next(reportMerchantIDWidth)
	if err != nil {
		return r, err
	}
	r.MerchantID = strings.TrimRight(merchantID, " ")

	merchantName, err := next(reportMerchantNameWidth)
	if err != nil {
		return r, err
	}
	r.MerchantName = strings.TrimRight(merchantName, " ")

	dateField, err := next(6)
	if err != nil {
		return r, err
	}

	amountField, err := next(reportAmountWidth)
	if err != nil {
		return r, err
	}
	if r.AmountCents, err = parseNum(amountField); err != nil {
		return r, fmt.Errorf("bad amount: %w", err)
	}

	lastFour, err := next(4)
	if err != nil {
		return r, err
	}
	r.CardLastFour = strings.TrimRight(lastFour, " ")

	brand, err := next(2)
	if err != nil {
		return r, err
	}
	r.BrandCode = strings.TrimRight(brand, " ")

	timeField, err := next(6)
	if err != nil {
		return r, err
	}
	timestamp, err := time.Parse(reportDateLayout+reportTimeLayout, dateField+timeField)
	if err != nil {
		return r, fmt.Errorf("bad date/time: %w", err)
	}
	r.Timestamp = timestamp

	indicator, err := next(1)
	if err != nil {
		return r, err
	}
	r.RepeatCustomer = indicator == "R"

	transactionID, err := next(reportTransactionIDWidth)
	if err != nil {
		return r, err
	}
	r.TransactionID = strings.TrimRight(transactionID, " ")

	city, err := next(reportCityWidth)
	if err != nil {
		return r, err
	}
	r.City = strings.TrimRight(city, " ")

	state, err := next(2)
	if err != nil {
		return r, err
	}
	r.State = strings.TrimRight(state, " ")

	zip, err := next(reportZipWidth)
	if err != nil {
		return r, err
	}
	r.Zip = strings.TrimRight(zip, " ")

	return r, nil
}

// ReportFilename builds the report file name: <decoration><yyyyMMdd>.txt
func ReportFilename(decoration string, date time.Time) string {
	return decoration + date.Format("20060102") + ".txt"
}

// BuildReportFile renders the full report: header line plus one detail line
// per record, newline-terminated.
func BuildReportFile(header ReportHeader, records []TransactionRecord) string {
	var b strings.Builder
	b.WriteString(BuildReportHeader(header))
	b.WriteString("\n")
	for _, r := range records {
		b.WriteString(BuildDetailLine(r))
		b.WriteString("\n")
	}
	return b.String()
}
