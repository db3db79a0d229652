package service

import (
	"context"
	"fmt"
	"io"

	"github.com/ali090-acme/TOVE-Leads-sub001/internal/dto"
	"github.com/ali090-acme/TOVE-Leads-sub001/internal/repository"

	"github.com/xuri/excelize/v2"
)

// ExportService renders bulk inventory views for managers.
type ExportService interface {
	// InventoryWorkbook writes an .xlsx with one sheet per collection.
	InventoryWorkbook(ctx context.Context, w io.Writer) error
}

type exportService struct {
	lots     repository.LotRepository
	holdings repository.StockHoldingRepository
	requests repository.StockRequestRepository
	tags     repository.TagRepository
}

func NewExportService(lots repository.LotRepository, holdings repository.StockHoldingRepository, requests repository.StockRequestRepository, tags repository.TagRepository) ExportService {
	return &exportService{lots: lots, holdings: holdings, requests: requests, tags: tags}
}

const (
	sheetLots     = "Lots"
	sheetHoldings = "Holdings"
	sheetRequests = "Requests"
	sheetTags     = "Tags"
)

func (s *exportService) InventoryWorkbook(ctx context.Context, w io.Writer) error {
	lots, err := s.lots.List(ctx, "")
	if err != nil {
		return err
	}
	holdings, err := s.holdings.List(ctx, dto.HoldingFilter{})
	if err != nil {
		return err
	}
	requests, err := s.requests.List(ctx, dto.RequestFilter{})
	if err != nil {
		return err
	}
	tags, err := s.tags.List(ctx, "")
	if err != nil {
		return err
	}

	f := excelize.NewFile()
	defer f.Close()

	// the default sheet becomes Lots
	if err := f.SetSheetName("Sheet1", sheetLots); err != nil {
		return err
	}
	for _, name := range []string{sheetHoldings, sheetRequests, sheetTags} {
		if _, err := f.NewSheet(name); err != nil {
			return err
		}
	}

	rows := make([][]interface{}, 0, len(lots))
	for _, l := range lots {
		rows = append(rows, []interface{}{l.LotNumber, l.Size, l.TotalQty, l.IssuedQty, l.AvailableQty, l.Status, fmtTime(l.CreatedAt)})
	}
	if err := writeSheet(f, sheetLots, []string{"Lot", "Size", "Total", "Issued", "Available", "Status", "Created"}, rows); err != nil {
		return err
	}

	rows = rows[:0]
	for _, h := range holdings {
		rows = append(rows, []interface{}{h.LotNumber, h.HolderName, h.HolderType, h.Qty, h.AllocatedQty, h.Remaining(), fmtTime(h.IssuedAt)})
	}
	if err := writeSheet(f, sheetHoldings, []string{"Lot", "Holder", "Holder type", "Qty", "Allocated", "Remaining", "Issued"}, rows); err != nil {
		return err
	}

	rows = rows[:0]
	for _, r := range requests {
		pref := ""
		if r.LotNumberPreference != nil {
			pref = *r.LotNumberPreference
		}
		reason := ""
		if r.RejectionReason != nil {
			reason = *r.RejectionReason
		}
		rows = append(rows, []interface{}{r.RequesterName, r.RequesterType, r.Qty, pref, r.Status, reason, fmtTime(r.CreatedAt)})
	}
	if err := writeSheet(f, sheetRequests, []string{"Requester", "Type", "Qty", "Preferred lot", "Status", "Rejection reason", "Created"}, rows); err != nil {
		return err
	}

	rows = rows[:0]
	for _, t := range tags {
		job := ""
		if t.JobOrderID != nil {
			job = t.JobOrderID.String()
		}
		rows = append(rows, []interface{}{t.TagNumber, t.Status, job, fmtTime(t.CreatedAt)})
	}
	if err := writeSheet(f, sheetTags, []string{"Tag", "Status", "Job order", "Created"}, rows); err != nil {
		return err
	}

	f.SetActiveSheet(0)
	return f.Write(w)
}

func writeSheet(f *excelize.File, sheet string, headers []string, rows [][]interface{}) error {
	header := make([]interface{}, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	last, _ := excelize.CoordinatesToCellName(len(headers), 1)
	if err := f.SetCellStyle(sheet, "A1", last, bold); err != nil {
		return err
	}
	for i := range rows {
		if err := f.SetSheetRow(sheet, fmt.Sprintf("A%d", i+2), &rows[i]); err != nil {
			return err
		}
	}
	return nil
}
