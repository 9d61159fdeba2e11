package restful

import (
	"github.com/gadgetini/display-agent/internal/api_response"
	"github.com/gadgetini/display-agent/internal/cerrors"
	"github.com/gadgetini/display-agent/internal/infrastructure/log"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

type IHistoryService interface {
	ListHistory(ctx *gin.Context, input *ListHistoryInput) (*api_response.BaseOutput, *cerrors.AppError)
	GetHistory(ctx *gin.Context, input *GetHistoryInput) (*api_response.BaseOutput, *cerrors.AppError)
}

type HistoryService struct {
	logger  *log.Logger
	history HistoryReader
}

func NewHistoryService(options ...func(*HistoryService)) *HistoryService {
	svc := &HistoryService{}
	for _, opt := range options {
		opt(svc)
	}
	svc.logger = log.Component("history_service")
	return svc
}

func WithHistoryReader(h HistoryReader) func(*HistoryService) {
	return func(s *HistoryService) { s.history = h }
}

type ListHistoryInput struct {
	BaseInput
}

type ListHistoryOutput struct {
	Capacity int      `json:"capacity"`
	Keys     []string `json:"keys"`
}

type GetHistoryInput struct {
	BaseInput
	Key string
}

// GetHistoryOutput lists bucket peaks, oldest first.
type GetHistoryOutput struct {
	Key      string    `json:"key"`
	Capacity int       `json:"capacity"`
	Peaks    []float64 `json:"peaks"`
}

func (svc *HistoryService) ListHistory(ctx *gin.Context, input *ListHistoryInput) (*api_response.BaseOutput, *cerrors.AppError) {
	_, span := input.Tracer.Start(input.TracerCtx, "list-history")
	defer span.End()

	if svc.history == nil {
		return nil, cerrors.ErrRegistryNotReady
	}
	keys := svc.history.Keys()
	return &api_response.BaseOutput{
		Code:    cerrors.OK.Code,
		Message: cerrors.OK.Message,
		Data:    ListHistoryOutput{Capacity: svc.history.Capacity(), Keys: keys},
		Count:   len(keys),
	}, nil
}

func (svc *HistoryService) GetHistory(ctx *gin.Context, input *GetHistoryInput) (*api_response.BaseOutput, *cerrors.AppError) {
	_, span := input.Tracer.Start(input.TracerCtx, "get-history")
	defer span.End()
	span.SetAttributes(attribute.String("sensor", input.Key))

	if svc.history == nil {
		return nil, cerrors.ErrRegistryNotReady
	}
	peaks := svc.history.Get(input.Key)
	if peaks == nil {
		return nil, cerrors.ErrHistoryNotFound.WithMessage("no history recorded for %q", input.Key)
	}
	return &api_response.BaseOutput{
		Code:    cerrors.OK.Code,
		Message: cerrors.OK.Message,
		Data:    GetHistoryOutput{Key: input.Key, Capacity: svc.history.Capacity(), Peaks: peaks},
		Count:   len(peaks),
	}, nil
}
