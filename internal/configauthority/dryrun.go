package configauthority

// DryRunResult is the outcome of validating a config document without
// applying it — mirrors config_authority.py's dry_run(), including its
// derived-metrics echo so an operator can see the consequences of a change
// before committing to it.
type DryRunResult struct {
	Valid                  bool     `json:"valid"`
	Errors                 []string `json:"errors,omitempty"`
	Version                string   `json:"version,omitempty"`
	Walls                  int      `json:"walls,omitempty"`
	Sources                int      `json:"sources,omitempty"`
	TotalTiles             int      `json:"total_tiles,omitempty"`
	TotalScreens           int      `json:"total_screens,omitempty"`
	TotalEndpoints         int      `json:"total_endpoints,omitempty"`
	SFURooms               int      `json:"sfu_rooms,omitempty"`
	MosaicPipelines        int      `json:"mosaic_pipelines,omitempty"`
	EstimatedBandwidthGbps float64  `json:"estimated_bandwidth_gbps,omitempty"`
	WorstCaseConcurrency   int      `json:"worst_case_concurrency,omitempty"`
	ConcurrencyHeadroom    int      `json:"concurrency_headroom,omitempty"`
	PredictedHash          string   `json:"predicted_hash,omitempty"`
}

// DryRun validates yamlText and reports derived metrics without applying it
// to the Holder.
func (l *Loader) DryRun(yamlText string) DryRunResult {
	snap, err := l.Load(yamlText, "<dry-run>")
	if err != nil {
		if ce, ok := err.(*ConfigError); ok {
			return DryRunResult{Valid: false, Errors: ce.Errors}
		}
		return DryRunResult{Valid: false, Errors: []string{err.Error()}}
	}

	d := snap.Derived
	return DryRunResult{
		Valid:                  true,
		Version:                snap.Platform.Version,
		Walls:                  d.TotalWalls,
		Sources:                d.TotalSources,
		TotalTiles:             d.TotalTiles,
		TotalScreens:           d.TotalScreens,
		TotalEndpoints:         d.TotalDisplayEndpoints,
		SFURooms:               d.SFURoomsNeeded,
		MosaicPipelines:        d.MosaicPipelinesNeeded,
		EstimatedBandwidthGbps: d.EstimatedBandwidthGbps,
		WorstCaseConcurrency:   d.WorstCaseConcurrency,
		ConcurrencyHeadroom:    d.ConcurrencyHeadroom,
		PredictedHash:          d.ConfigHash,
	}
}
