package service

import (
	"encoding/json"
	"time"

	"github.com/ali090-acme/TOVE-Leads-sub001/internal/dto"
	"github.com/ali090-acme/TOVE-Leads-sub001/internal/model"

	"github.com/google/uuid"
)

func fmtTime(t time.Time) string { return t.UTC().Format(time.RFC3339) }

func fmtTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := fmtTime(*t)
	return &s
}

func idPtr(id *uuid.UUID) *string {
	if id == nil {
		return nil
	}
	s := id.String()
	return &s
}

func ptr[T any](v T) *T { return &v }

func userToResponse(u *model.User) dto.UserResponse {
	return dto.UserResponse{
		ID: u.ID.String(), Username: u.Username, Name: u.Name, Email: u.Email,
		Role: u.Role, CanCreateJobOrders: u.CanCreateJobOrders, Active: u.Active,
	}
}

func lotToResponse(l *model.Lot) dto.LotResponse {
	return dto.LotResponse{
		ID:           l.ID.String(),
		LotNumber:    l.LotNumber,
		Size:         l.Size,
		TotalQty:     l.TotalQty,
		IssuedQty:    l.IssuedQty,
		AvailableQty: l.AvailableQty,
		Status:       l.Status,
		CreatedAt:    fmtTime(l.CreatedAt),
	}
}

func holdingToResponse(h *model.StockHolding) dto.HoldingResponse {
	return dto.HoldingResponse{
		ID:           h.ID.String(),
		LotID:        h.LotID.String(),
		LotNumber:    h.LotNumber,
		HolderID:     h.HolderID.String(),
		HolderName:   h.HolderName,
		HolderType:   h.HolderType,
		Qty:          h.Qty,
		AllocatedQty: h.AllocatedQty,
		Remaining:    h.Remaining(),
		IssuedAt:     fmtTime(h.IssuedAt),
	}
}

func transferToResponse(t *model.Transfer) dto.TransferResponse {
	return dto.TransferResponse{
		ID:           t.ID.String(),
		LotID:        t.LotID.String(),
		LotNumber:    t.LotNumber,
		FromHolderID: t.FromHolderID.String(),
		ToHolderID:   t.ToHolderID.String(),
		Qty:          t.Qty,
		Status:       t.Status,
		Notes:        t.Notes,
		CreatedAt:    fmtTime(t.CreatedAt),
	}
}

func requestToResponse(r *model.StockRequest) dto.StockRequestResponse {
	approvedBy := r.ApprovedBy
	if r.ApprovedOnBehalfOf != nil {
		approvedBy = r.ApprovedOnBehalfOf
	}
	return dto.StockRequestResponse{
		ID:                  r.ID.String(),
		RequesterID:         idPtr(r.RequesterID),
		RequesterName:       r.RequesterName,
		RequesterType:       r.RequesterType,
		Qty:                 r.Qty,
		LotNumberPreference: r.LotNumberPreference,
		Status:              r.Status,
		ApprovedBy:          idPtr(approvedBy),
		ApprovedAt:          fmtTimePtr(r.ApprovedAt),
		RejectedBy:          idPtr(r.RejectedBy),
		RejectionReason:     r.RejectionReason,
		FulfilledLotID:      idPtr(r.FulfilledLotID),
		HoldingID:           idPtr(r.HoldingID),
		CreatedAt:           fmtTime(r.CreatedAt),
	}
}

func tagToResponse(t *model.Tag) dto.TagResponse {
	return dto.TagResponse{
		ID:            t.ID.String(),
		TagNumber:     t.TagNumber,
		Status:        t.Status,
		JobOrderID:    idPtr(t.JobOrderID),
		CreatedAt:     fmtTime(t.CreatedAt),
		AllocatedAt:   fmtTimePtr(t.AllocatedAt),
		UsedAt:        fmtTimePtr(t.UsedAt),
		RemovedAt:     fmtTimePtr(t.RemovedAt),
		RemovalReason: t.RemovalReason,
	}
}

func allocationToResponse(a *model.StickerAllocation) dto.StickerAllocationResponse {
	return dto.StickerAllocationResponse{
		ID:             a.ID.String(),
		JobOrderID:     a.JobOrderID.String(),
		StockHoldingID: a.StockHoldingID.String(),
		LotNumber:      a.LotNumber,
		StickerNumber:  a.StickerNumber,
		Qty:            a.Qty,
		AllocatedBy:    a.AllocatedBy.String(),
		CreatedAt:      fmtTime(a.CreatedAt),
	}
}

func paymentToResponse(p *model.Payment) dto.PaymentResponse {
	return dto.PaymentResponse{
		ID:            p.ID.String(),
		JobOrderID:    p.JobOrderID.String(),
		Amount:        p.Amount,
		Status:        p.Status,
		Method:        p.Method,
		SubmittedBy:   p.SubmittedBy.String(),
		ConfirmedBy:   idPtr(p.ConfirmedBy),
		ConfirmedAt:   fmtTimePtr(p.ConfirmedAt),
		FailureReason: p.FailureReason,
		CreatedAt:     fmtTime(p.CreatedAt),
	}
}

func certificateToResponse(c *model.Certificate, now time.Time) *dto.CertificateResponse {
	return &dto.CertificateResponse{
		ID:                c.ID.String(),
		JobOrderID:        c.JobOrderID.String(),
		CertificateNumber: c.CertificateNumber,
		VerificationCode:  c.VerificationCode,
		IssueDate:         fmtTime(c.IssueDate),
		ExpiryDate:        fmtTime(c.ExpiryDate),
		Status:            c.Status,
		Valid:             c.Status == "valid" && now.Before(c.ExpiryDate),
	}
}

func jobOrderToResponse(j *model.JobOrder, now time.Time) dto.JobOrderResponse {
	resp := dto.JobOrderResponse{
		ID:                 j.ID.String(),
		OfflineID:          j.OfflineID,
		ClientID:           j.ClientID.String(),
		ServiceTypes:       []string(j.ServiceTypes),
		Phase:              string(j.Phase),
		Status:             j.Phase.LegacyStatus(),
		AssignedTo:         j.AssignedTo.String(),
		CreatedBy:          j.CreatedBy.String(),
		Location:           j.Location,
		ScheduledFor:       fmtTimePtr(j.ScheduledFor),
		Amount:             j.Amount,
		PaymentStatus:      j.PaymentStatus,
		PhotoKey:           j.PhotoKey,
		ApprovedBy:         idPtr(j.ApprovedBy),
		ApprovedAt:         fmtTimePtr(j.ApprovedAt),
		ReportApprovedAt:   fmtTimePtr(j.ReportApprovedAt),
		RejectionReason:    j.RejectionReason,
		StickerAllocations: make([]dto.StickerAllocationResponse, len(j.StickerAllocations)),
		Tags:               make([]dto.TagResponse, len(j.Tags)),
		Payments:           make([]dto.PaymentResponse, len(j.Payments)),
		CreatedAt:          fmtTime(j.CreatedAt),
	}
	if len(j.ReportData) > 0 {
		_ = json.Unmarshal(j.ReportData, &resp.ReportData)
	}
	for i := range j.StickerAllocations {
		resp.StickerAllocations[i] = allocationToResponse(&j.StickerAllocations[i])
	}
	for i := range j.Tags {
		resp.Tags[i] = tagToResponse(&j.Tags[i])
	}
	for i := range j.Payments {
		resp.Payments[i] = paymentToResponse(&j.Payments[i])
	}
	if j.Certificate != nil {
		resp.Certificate = certificateToResponse(j.Certificate, now)
	}
	return resp
}

func notificationToResponse(n *model.Notification) dto.NotificationResponse {
	return dto.NotificationResponse{
		ID:          n.ID.String(),
		Kind:        n.Kind,
		Subject:     n.Subject,
		Body:        n.Body,
		JobOrderID:  idPtr(n.JobOrderID),
		EmailStatus: n.EmailStatus,
		CreatedAt:   fmtTime(n.CreatedAt),
		ReadAt:      fmtTimePtr(n.ReadAt),
	}
}
