package bigquery

import (
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"

	"github.com/dvloznov/charge-mapping/internal/matcher"
)

// JoinedRecordRow is one published join outcome. Billing columns are null for unmatched lines.
type JoinedRecordRow struct {
	RunID   string `bigquery:"run_id"`   // REQUIRED
	JoinKey string `bigquery:"join_key"` // NULLABLE
	Status  string `bigquery:"status"`   // REQUIRED

	InvoiceMD5      bigquery.NullString `bigquery:"invoice_md5"`
	InvoiceNumber   bigquery.NullString `bigquery:"invoice_number"`
	VendorName      bigquery.NullString `bigquery:"vendor_name"`
	AccountNumber   bigquery.NullString `bigquery:"account_number"`
	InvoiceDate     bigquery.NullString `bigquery:"invoice_date"`
	LineDescription bigquery.NullString `bigquery:"line_description"`
	LineAmount      *big.Rat            `bigquery:"line_amount"` // NULLABLE NUMERIC
	ParsedEquipment bigquery.NullString `bigquery:"parsed_equipment"`
	ParsedMaterial  bigquery.NullString `bigquery:"parsed_material"`

	ChargeDescription bigquery.NullString `bigquery:"charge_description"`
	EquipmentType     bigquery.NullString `bigquery:"equipment_type"`
	Material          bigquery.NullString `bigquery:"material"`
	ServiceID         bigquery.NullString `bigquery:"service_id"`
	ServiceType       bigquery.NullString `bigquery:"service_type"`
	BillingAmount     *big.Rat            `bigquery:"billing_amount"` // NULLABLE NUMERIC

	MatchScore         int64    `bigquery:"match_score"`
	AmountScore        int64    `bigquery:"amount_score"`
	DescriptionOverlap int64    `bigquery:"description_overlap"`
	Variance           *big.Rat `bigquery:"variance"` // NULLABLE NUMERIC

	Note      bigquery.NullString `bigquery:"note"`
	RunDate   civil.Date          `bigquery:"run_date"` // REQUIRED, partition column
	CreatedTS time.Time           `bigquery:"created_ts"`
}

// NewJoinedRecordRow flattens rec for insertion.
func NewJoinedRecordRow(rec matcher.JoinedRecord, created time.Time) *JoinedRecordRow {
	l := rec.Line
	row := &JoinedRecordRow{
		RunID:   rec.RunID,
		JoinKey: rec.Key,
		Status:  string(rec.Status),

		InvoiceMD5:      nullString(l.MD5),
		InvoiceNumber:   nullString(l.InvoiceNumber),
		VendorName:      nullString(l.VendorName),
		AccountNumber:   nullString(l.AccountNumber),
		InvoiceDate:     nullString(l.InvoiceDate),
		LineDescription: nullString(l.Description),
		LineAmount:      decimalRat(l.Amount),
		ParsedEquipment: nullString(l.Equipment),
		ParsedMaterial:  nullString(l.Material),

		MatchScore:         int64(rec.Score),
		AmountScore:        int64(rec.AmountScore),
		DescriptionOverlap: int64(rec.OverlapScore),
		Variance:           decimalRat(rec.Variance),

		Note:      nullString(rec.Note),
		RunDate:   civil.DateOf(created),
		CreatedTS: created,
	}

	if c := rec.Charge; c != nil {
		row.ChargeDescription = nullString(c.ChargeDescription)
		row.EquipmentType = nullString(c.EquipmentType)
		row.Material = nullString(c.Material)
		row.ServiceID = nullString(c.ServiceID)
		row.ServiceType = nullString(c.ServiceType)
		row.BillingAmount = decimalRat(c.Amount)
	}

	return row
}
