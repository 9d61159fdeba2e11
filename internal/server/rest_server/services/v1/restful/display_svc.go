package restful

import (
	"github.com/gadgetini/display-agent/internal/api_response"
	"github.com/gadgetini/display-agent/internal/cerrors"
	"github.com/gadgetini/display-agent/internal/infrastructure/log"
	"github.com/gadgetini/display-agent/internal/profile"
	"github.com/gin-gonic/gin"
)

type IDisplayService interface {
	GetDisplay(ctx *gin.Context, input *GetDisplayInput) (*api_response.BaseOutput, *cerrors.AppError)
	ListViewers(ctx *gin.Context, input *ListViewersInput) (*api_response.BaseOutput, *cerrors.AppError)
}

type DisplayService struct {
	logger  *log.Logger
	state   StateProvider
	results ResultProvider
	toggles ViewerToggles
}

func NewDisplayService(options ...func(*DisplayService)) *DisplayService {
	svc := &DisplayService{}
	for _, opt := range options {
		opt(svc)
	}
	svc.logger = log.Component("display_service")
	return svc
}

func WithDisplayState(p StateProvider) func(*DisplayService) {
	return func(s *DisplayService) { s.state = p }
}

func WithDisplayResults(p ResultProvider) func(*DisplayService) {
	return func(s *DisplayService) { s.results = p }
}

func WithViewerToggles(t ViewerToggles) func(*DisplayService) {
	return func(s *DisplayService) { s.toggles = t }
}

type GetDisplayInput struct {
	BaseInput
}

type ListViewersInput struct {
	BaseInput
}

type ViewerInfo struct {
	profile.Viewer
	Enabled bool `json:"enabled"`
}

func (svc *DisplayService) GetDisplay(ctx *gin.Context, input *GetDisplayInput) (*api_response.BaseOutput, *cerrors.AppError) {
	_, span := input.Tracer.Start(input.TracerCtx, "get-display")
	defer span.End()

	if svc.state == nil {
		return nil, cerrors.ErrRegistryNotReady
	}
	st := svc.state.Current()
	if st == nil {
		return nil, cerrors.ErrRegistryNotReady
	}
	return &api_response.BaseOutput{
		Code:    cerrors.OK.Code,
		Message: cerrors.OK.Message,
		Data:    st,
	}, nil
}

func (svc *DisplayService) ListViewers(ctx *gin.Context, input *ListViewersInput) (*api_response.BaseOutput, *cerrors.AppError) {
	_, span := input.Tracer.Start(input.TracerCtx, "list-viewers")
	defer span.End()

	res := currentResult(svc.results)
	if res == nil {
		return nil, cerrors.ErrRegistryNotReady
	}
	viewers := make([]ViewerInfo, 0, len(res.Viewers))
	for _, v := range res.Viewers {
		enabled := svc.toggles == nil || svc.toggles.ViewerEnabled(v.Key)
		viewers = append(viewers, ViewerInfo{Viewer: v, Enabled: enabled})
	}
	return &api_response.BaseOutput{
		Code:    cerrors.OK.Code,
		Message: cerrors.OK.Message,
		Data:    viewers,
		Count:   len(viewers),
	}, nil
}
