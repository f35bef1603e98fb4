package backend

import (
	"context"
	"math"
	"runtime"

	"localwhisper/i18n"
	"localwhisper/models"
)

const bytesPerGiB = 1 << 30

var reasonIDs = map[string]string{
	"ggml-tiny-q5_1": "system.reason.tiny",
	"ggml-base":      "system.reason.base",
	"ggml-small":     "system.reason.small",
	"ggml-medium":    "system.reason.medium",
}

// probeSystem reads total memory and cores. totalMemory is per OS.
func probeSystem() SystemInfo {
	ram := float64(totalMemory()) / bytesPerGiB
	return SystemInfo{
		TotalRAMGB: ram,
		CPUCores:   runtime.NumCPU(),
		OS:         runtime.GOOS,
		Arch:       runtime.GOARCH,
	}
}

// GetSystemInfo adds the model recommendation, explained in the UI locale,
// to the machine probe.
func (l *Local) GetSystemInfo(context.Context) (SystemInfo, error) {
	probe := probeSystem
	if l.opts.SystemInfo != nil {
		probe = l.opts.SystemInfo
	}
	info := probe()
	info.RecommendedModel = models.Recommend(info.TotalRAMGB)
	info.RecommendedModelReason = i18n.T(l.cfg.Get().UILocale, reasonIDs[info.RecommendedModel], nil)
	info.TotalRAMGB = math.Round(info.TotalRAMGB*10) / 10
	return info, nil
}
