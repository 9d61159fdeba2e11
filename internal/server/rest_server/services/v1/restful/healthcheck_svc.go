package restful

import (
	"time"

	"github.com/gadgetini/display-agent/internal/api_response"
	"github.com/gadgetini/display-agent/internal/cerrors"
	"github.com/gadgetini/display-agent/internal/constants"
	"github.com/gadgetini/display-agent/internal/infrastructure/log"
	"github.com/gadgetini/display-agent/internal/utilities"
	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"
	"go.uber.org/zap"
)

type IHealthcheckService interface {
	Healthcheck(ctx *gin.Context, input *HealthcheckInput) (*api_response.BaseOutput, *cerrors.AppError)
}

type HealthcheckService struct {
	logger    *log.Logger
	results   ResultProvider
	version   string
	startedAt time.Time
}

func NewHealthcheckService(options ...func(*HealthcheckService)) *HealthcheckService {
	svc := &HealthcheckService{
		version:   constants.AgentDefaultVersion,
		startedAt: time.Now(),
	}
	for _, opt := range options {
		opt(svc)
	}
	svc.logger = log.Component("healthcheck")
	return svc
}

func WithHealthResults(p ResultProvider) func(*HealthcheckService) {
	return func(s *HealthcheckService) { s.results = p }
}

func WithHealthVersion(v string) func(*HealthcheckService) {
	return func(s *HealthcheckService) { s.version = v }
}

type HealthcheckInput struct {
	BaseInput
}

type HealthcheckOutput struct {
	Agent   AgentInfo   `json:"agent"`
	Host    HostInfo    `json:"host"`
	Memory  MemoryInfo  `json:"memory"`
	Network NetworkInfo `json:"network"`
	CPU     CPUInfo     `json:"cpu"`
}

type AgentInfo struct {
	Version        string  `json:"version"`
	UptimeSeconds  float64 `json:"uptime_seconds"`
	Product        string  `json:"product"`
	Fallback       bool    `json:"fallback"`
	Sensors        int     `json:"sensors"`
	ErroredSensors int     `json:"errored_sensors"`
	Viewers        int     `json:"viewers"`
}

type MemoryInfo struct {
	Total       uint64  `json:"total"`
	Free        uint64  `json:"free"`
	UsedPercent float64 `json:"used_percent"`
}

type NetworkInfo struct {
	DisplayAddress string `json:"display_address"`
}

type HostInfo struct {
	Hostname        string `json:"hostname"`
	OS              string `json:"os"`
	Platform        string `json:"platform"`
	PlatformVersion string `json:"platform_version"`
	KernelVersion   string `json:"kernel_version"`
	Arch            string `json:"arch"`
	UptimeSeconds   uint64 `json:"uptime_seconds"`
	HostID          string `json:"host_id"`
}

type CPUInfo struct {
	ModelName     string `json:"model_name"`
	VendorID      string `json:"vendor_id"`
	PhysicalCores int    `json:"physical_cores"`
	LogicalCores  int    `json:"logical_cores"`
}

func (svc *HealthcheckService) Healthcheck(ctx *gin.Context, input *HealthcheckInput) (*api_response.BaseOutput, *cerrors.AppError) {
	rootCtx, span := input.Tracer.Start(input.TracerCtx, "healthcheck-handler")
	defer span.End()

	lg := svc.logger.With(
		zap.String(constants.APIFieldRequestID, ctx.GetString(constants.APIFieldRequestID)),
	)

	out := HealthcheckOutput{Agent: svc.agentInfo()}

	_, cSpan := input.Tracer.Start(rootCtx, "get-host-info")
	hostStat, err := host.InfoWithContext(rootCtx)
	cSpan.End()
	if err != nil {
		lg.Error(errors.Wrap(err, "failed to get host info").Error())
		return nil, cerrors.ErrGenericInternalServer.WithCause(err)
	}
	out.Host = HostInfo{
		Hostname:        hostStat.Hostname,
		OS:              hostStat.OS,
		Platform:        hostStat.Platform,
		PlatformVersion: hostStat.PlatformVersion,
		KernelVersion:   hostStat.KernelVersion,
		Arch:            hostStat.KernelArch,
		UptimeSeconds:   hostStat.Uptime,
		HostID:          hostStat.HostID,
	}

	_, cSpan = input.Tracer.Start(rootCtx, "get-memory-info")
	memoryInfo, err := mem.VirtualMemoryWithContext(rootCtx)
	cSpan.End()
	if err != nil {
		lg.Error(errors.Wrap(err, "failed to get memory info").Error())
		return nil, cerrors.ErrGenericInternalServer.WithCause(err)
	}
	out.Memory = MemoryInfo{
		Total:       memoryInfo.Total,
		Free:        memoryInfo.Free,
		UsedPercent: memoryInfo.UsedPercent,
	}

	// CPU details are informational; some SoCs expose no model name.
	_, cSpan = input.Tracer.Start(rootCtx, "get-cpu-info")
	if cpuStat, err := cpu.InfoWithContext(rootCtx); err == nil && len(cpuStat) > 0 {
		out.CPU.ModelName = cpuStat[0].ModelName
		out.CPU.VendorID = cpuStat[0].VendorID
	}
	out.CPU.PhysicalCores, _ = cpu.CountsWithContext(rootCtx, false)
	out.CPU.LogicalCores, _ = cpu.CountsWithContext(rootCtx, true)
	cSpan.End()

	out.Network.DisplayAddress = utilities.DisplayAddress()

	return &api_response.BaseOutput{
		Code:    cerrors.OK.Code,
		Message: cerrors.OK.Message,
		Data:    out,
	}, nil
}

func (svc *HealthcheckService) agentInfo() AgentInfo {
	info := AgentInfo{
		Version:       svc.version,
		UptimeSeconds: time.Since(svc.startedAt).Seconds(),
	}
	res := currentResult(svc.results)
	if res == nil {
		return info
	}
	info.Product = res.Product
	info.Fallback = res.Fallback
	info.Sensors = res.Registry.Len()
	info.Viewers = len(res.Viewers)
	for _, rt := range res.Registry.Runtimes() {
		if rt.Errored() {
			info.ErroredSensors++
		}
	}
	return info
}
