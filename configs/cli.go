package configs

// CLI flag structs parsed with alecthomas/kong, layered on top of the
// YAML config: the file supplies the baseline, flags override
// individual fields for local runs.

// CommonCLI holds the flags every worker accepts.
type CommonCLI struct {
	Config   string `name:"config" help:"Path to the YAML config file." default:"config.yaml"`
	URI      string `name:"uri" help:"Mongo connection URI, overrides the config file."`
	DB       string `name:"db" help:"Mongo database name, overrides the config file."`
	Interval int    `name:"interval" help:"Tick interval in seconds, overrides the config file."`
}

// IndexerCLI adds the Indexer's window-sizing overrides.
type IndexerCLI struct {
	CommonCLI
	RealtimeWait      int    `name:"realtime_wait" help:"Real-time mode sleep in seconds, overrides the config file."`
	CatchupWait       int    `name:"catchup_wait" help:"Catch-up mode sleep in seconds, overrides the config file."`
	RealtimeThreshold uint64 `name:"realtime_threshold" help:"Lag threshold (blocks) above which catch-up mode engages."`
}

// Apply layers CommonCLI overrides onto a loaded Config. Zero-valued
// flags (unset) leave the YAML value untouched.
func (f CommonCLI) Apply(c *Config) {
	if f.URI != "" {
		c.Mongo.URI = f.URI
	}
	if f.DB != "" {
		c.Mongo.DB = f.DB
	}
}

// ApplyIndexer layers IndexerCLI overrides onto a loaded Config.
func (f IndexerCLI) ApplyIndexer(c *Config) {
	f.CommonCLI.Apply(c)
	if f.Interval > 0 {
		c.Indexer.RealtimeWaitSec = f.Interval
	}
	if f.RealtimeWait > 0 {
		c.Indexer.RealtimeWaitSec = f.RealtimeWait
	}
	if f.CatchupWait > 0 {
		c.Indexer.CatchupWaitSec = f.CatchupWait
	}
	if f.RealtimeThreshold > 0 {
		c.Indexer.RealtimeThreshold = f.RealtimeThreshold
	}
}

// ApplyAnalytics layers CommonCLI.Interval onto the analytics section.
func (f CommonCLI) ApplyAnalytics(c *Config) {
	f.Apply(c)
	if f.Interval > 0 {
		c.Analytics.IdleSec = f.Interval
	}
}

// ApplyValuator layers CommonCLI.Interval onto the valuator section.
func (f CommonCLI) ApplyValuator(c *Config) {
	f.Apply(c)
	if f.Interval > 0 {
		c.Valuator.IntervalSec = f.Interval
	}
}

// ApplyAssetIndex layers CommonCLI.Interval onto the asset_index section.
func (f CommonCLI) ApplyAssetIndex(c *Config) {
	f.Apply(c)
	if f.Interval > 0 {
		c.AssetIndex.IntervalSec = f.Interval
	}
}
