package configs

type Config struct {
	// 基础配置
	ListenAddr string   `json:"listen_addr" yaml:"listen_addr"` // HTTP 监听地址
	Feed       string   `json:"feed" yaml:"feed"`               // 启动时的数据源 (simulated/live)
	Symbols    []string `json:"symbols" yaml:"symbols"`         // 实时源追踪的交易对列表
	Proxy      string   `json:"proxy" yaml:"proxy"`             // 出站代理

	Prefs PrefsConfig `json:"prefs" yaml:"prefs"`
}

type PrefsConfig struct {
	Backend string `json:"backend" yaml:"backend"`   // file 或 postgres
	Path    string `json:"path" yaml:"path"`         // file 后端的存储路径
	ConnStr string `json:"conn_str" yaml:"conn_str"` // postgres 连接字符串
}

// Defaults fills in zero-value fields so an empty config file still
// yields a runnable dashboard.
func (c *Config) Defaults() {
	if c.ListenAddr == "" {
		c.ListenAddr = ":8080"
	}
	if c.Feed == "" {
		c.Feed = "simulated"
	}
	if c.Prefs.Backend == "" {
		c.Prefs.Backend = "file"
	}
	if c.Prefs.Path == "" {
		c.Prefs.Path = "coinboard.prefs.json"
	}
}
