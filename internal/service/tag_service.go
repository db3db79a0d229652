package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/ali090-acme/TOVE-Leads-sub001/internal/apierror"
	"github.com/ali090-acme/TOVE-Leads-sub001/internal/changebus"
	"github.com/ali090-acme/TOVE-Leads-sub001/internal/dto"
	"github.com/ali090-acme/TOVE-Leads-sub001/internal/model"
	"github.com/ali090-acme/TOVE-Leads-sub001/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TagService is the serialized tag registry. Tag status only moves forward:
// available → allocated → used, and available|allocated → removed. Used and
// removed are terminal.
type TagService interface {
	CreateTag(ctx context.Context, actor Actor, req dto.CreateTagRequest) (*dto.TagResponse, error)
	AllocateTag(ctx context.Context, actor Actor, tagNumber string, req dto.AllocateTagRequest) (*dto.TagResponse, error)
	MarkUsed(ctx context.Context, actor Actor, tagNumber string) (*dto.TagResponse, error)
	MarkRemoved(ctx context.Context, actor Actor, tagNumber string, req dto.RemoveTagRequest) (*dto.TagResponse, error)
	FindByNumber(ctx context.Context, tagNumber string) (*dto.TagResponse, error)
	List(ctx context.Context, filter dto.TagFilter) ([]dto.TagResponse, error)
}

type tagService struct {
	repo repository.TagRepository
	jobs repository.JobOrderRepository
	bus  changebus.Publisher
}

func NewTagService(repo repository.TagRepository, jobs repository.JobOrderRepository, bus changebus.Publisher) TagService {
	return &tagService{repo: repo, jobs: jobs, bus: bus}
}

func (s *tagService) CreateTag(ctx context.Context, actor Actor, req dto.CreateTagRequest) (*dto.TagResponse, error) {
	if actor.Role != model.RoleManager {
		return nil, apierror.PermissionDenied("create_tag")
	}
	number := strings.TrimSpace(req.TagNumber)
	if number == "" {
		return nil, apierror.Validation("tag_number", "required")
	}
	if _, err := s.repo.FindByNumber(ctx, nil, number); err == nil {
		return nil, apierror.DuplicateTag(number)
	} else if !repository.IsNotFound(err) {
		return nil, err
	}

	tag := &model.Tag{TagNumber: number, Status: model.TagAvailable}
	if err := s.repo.Create(ctx, nil, tag); err != nil {
		if repository.IsDuplicate(err) {
			return nil, apierror.DuplicateTag(number)
		}
		return nil, err
	}
	s.bus.Publish(changebus.TopicTags, tag.TagNumber, "created")
	resp := tagToResponse(tag)
	return &resp, nil
}

func (s *tagService) AllocateTag(ctx context.Context, actor Actor, tagNumber string, req dto.AllocateTagRequest) (*dto.TagResponse, error) {
	if !hasRole(actor.Role, []string{model.RoleInspector, model.RoleManager}) {
		return nil, apierror.PermissionDenied("allocate_tag")
	}
	jobID, err := uuid.Parse(req.JobOrderID)
	if err != nil {
		return nil, apierror.Validation("job_order_id", "invalid uuid")
	}
	job, err := s.jobs.FindByID(ctx, nil, jobID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, apierror.NotFound("job order", jobID)
		}
		return nil, err
	}
	if job.Phase.Terminal() {
		return nil, apierror.InvalidState("job order is %s", job.Phase)
	}

	var tag *model.Tag
	err = runTx(ctx, s.jobs.DB(), func(tx *gorm.DB) error {
		tag, err = allocateTagTx(ctx, tx, s.repo, tagNumber, jobID)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.bus.Publish(changebus.TopicTags, tag.TagNumber, "allocated")
	s.bus.Publish(changebus.TopicJobOrders, jobID.String(), "tag_allocated")
	resp := tagToResponse(tag)
	return &resp, nil
}

// allocateTagTx moves an available tag onto a job order. Also used when a job
// order is created with a tag number.
func allocateTagTx(ctx context.Context, tx *gorm.DB, repo repository.TagRepository, tagNumber string, jobID uuid.UUID) (*model.Tag, error) {
	tag, err := findTag(ctx, tx, repo, tagNumber)
	if err != nil {
		return nil, err
	}
	if tag.Status != model.TagAvailable {
		return nil, apierror.InvalidState("tag %s is %s, only available tags can be allocated", tag.TagNumber, tag.Status)
	}
	next := *tag
	now := time.Now()
	next.Status = model.TagAllocated
	next.JobOrderID = &jobID
	next.AllocatedAt = &now
	if err := repo.Transition(ctx, tx, &next, model.TagAvailable); err != nil {
		return nil, transitionErr(err, tag)
	}
	return &next, nil
}

func (s *tagService) MarkUsed(ctx context.Context, actor Actor, tagNumber string) (*dto.TagResponse, error) {
	if !hasRole(actor.Role, []string{model.RoleInspector, model.RoleManager}) {
		return nil, apierror.PermissionDenied("mark_tag_used")
	}
	tag, err := findTag(ctx, nil, s.repo, tagNumber)
	if err != nil {
		return nil, err
	}
	if tag.Status != model.TagAllocated {
		return nil, apierror.InvalidState("tag %s is %s, only allocated tags can be used", tag.TagNumber, tag.Status)
	}
	next := *tag
	now := time.Now()
	next.Status = model.TagUsed
	next.UsedAt = &now
	if err := s.repo.Transition(ctx, nil, &next, model.TagAllocated); err != nil {
		return nil, transitionErr(err, tag)
	}
	s.bus.Publish(changebus.TopicTags, tag.TagNumber, "used")
	resp := tagToResponse(&next)
	return &resp, nil
}

func (s *tagService) MarkRemoved(ctx context.Context, actor Actor, tagNumber string, req dto.RemoveTagRequest) (*dto.TagResponse, error) {
	if !hasRole(actor.Role, []string{model.RoleInspector, model.RoleManager}) {
		return nil, apierror.PermissionDenied("mark_tag_removed")
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		return nil, apierror.Validation("reason", "required")
	}
	tag, err := findTag(ctx, nil, s.repo, tagNumber)
	if err != nil {
		return nil, err
	}
	if tag.Status != model.TagAvailable && tag.Status != model.TagAllocated {
		return nil, apierror.InvalidState("tag %s is %s and can no longer be removed", tag.TagNumber, tag.Status)
	}
	next := *tag
	now := time.Now()
	next.Status = model.TagRemoved
	next.RemovedAt = &now
	next.RemovalReason = &reason
	if err := s.repo.Transition(ctx, nil, &next, model.TagAvailable, model.TagAllocated); err != nil {
		return nil, transitionErr(err, tag)
	}
	s.bus.Publish(changebus.TopicTags, tag.TagNumber, "removed")
	resp := tagToResponse(&next)
	return &resp, nil
}

func (s *tagService) FindByNumber(ctx context.Context, tagNumber string) (*dto.TagResponse, error) {
	tag, err := findTag(ctx, nil, s.repo, tagNumber)
	if err != nil {
		return nil, err
	}
	resp := tagToResponse(tag)
	return &resp, nil
}

func (s *tagService) List(ctx context.Context, filter dto.TagFilter) ([]dto.TagResponse, error) {
	tags, err := s.repo.List(ctx, filter.Status)
	if err != nil {
		return nil, err
	}
	resp := make([]dto.TagResponse, len(tags))
	for i := range tags {
		resp[i] = tagToResponse(&tags[i])
	}
	return resp, nil
}

func findTag(ctx context.Context, tx *gorm.DB, repo repository.TagRepository, tagNumber string) (*model.Tag, error) {
	tag, err := repo.FindByNumber(ctx, tx, strings.TrimSpace(tagNumber))
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, apierror.NotFound("tag", tagNumber)
		}
		return nil, err
	}
	return tag, nil
}

func transitionErr(err error, tag *model.Tag) error {
	if errors.Is(err, repository.ErrConditionFailed) {
		return apierror.InvalidState("tag %s changed concurrently", tag.TagNumber)
	}
	return err
}
