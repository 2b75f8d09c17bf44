package services

import (
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/cedricperpignand1/bbbmailer/models"
	"github.com/cedricperpignand1/bbbmailer/utils"
)

var sendLogHeader = []any{"Log ID", "Contact ID", "Recipient", "Status", "Address", "Subject", "Provider Message ID", "Error", "Queued At", "Sent At"}

// RunReport builds a spreadsheet of one run's send logs
type RunReport struct {
	loc *time.Location
}

// NewRunReport renders timestamps in loc
func NewRunReport(loc *time.Location) *RunReport {
	if loc == nil {
		loc = time.UTC
	}
	return &RunReport{loc: loc}
}

// Build returns the xlsx bytes: a summary sheet and a sheet of send logs
func (r *RunReport) Build(campaign *models.AutoCampaign, run *models.CampaignRun, logs []*models.SendLog) ([]byte, error) {
	xl := excelize.NewFile()
	defer func() { _ = xl.Close() }()

	summary := "Summary"
	xl.SetSheetName(xl.GetSheetName(0), summary)
	rows := [][]any{
		{"Campaign", fmt.Sprintf("%d %s", campaign.ID, campaign.Name)},
		{"Channel", campaign.Channel.String()},
		{"Run", run.UUID.String()},
		{"Period", run.PeriodKey},
		{"Scheme", run.Scheme.String()},
		{"Forced", run.Forced},
		{"Status", string(run.Status)},
		{"Fired At", r.format(&run.FiredAt)},
		{"Completed At", r.format(run.CompletedAt)},
		{"Queued", run.QueuedCount},
		{"Sent", run.SentCount},
		{"Failed", run.FailedCount},
		{"Address", utils.Deref(run.AddressUsed, "")},
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := xl.SetSheetRow(summary, cell, &row); err != nil {
			return nil, fmt.Errorf("failed to write summary row: %w", err)
		}
	}

	sheet := "Send Logs"
	if _, err := xl.NewSheet(sheet); err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	if err := xl.SetSheetRow(sheet, "A1", &sendLogHeader); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}
	for i, l := range logs {
		record := []any{
			l.ID,
			l.ContactID,
			l.Recipient,
			string(l.Status),
			utils.Deref(l.AddressUsed, ""),
			utils.Deref(l.Subject, ""),
			utils.Deref(l.ProviderMessageID, ""),
			utils.Deref(l.Error, ""),
			r.format(&l.CreatedAt),
			r.format(l.SentAt),
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := xl.SetSheetRow(sheet, cell, &record); err != nil {
			return nil, fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}
	_ = xl.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})

	buf, err := xl.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func (r *RunReport) format(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.In(r.loc).Format("2006-01-02 15:04:05 MST")
}
