package config

// Log 日志配置
type Log struct {
	Level      string `toml:"Level" yaml:"Level"`
	File       string `toml:"File" yaml:"File"`
	MaxSize    int    `toml:"MaxSize" yaml:"MaxSize"` // megabytes
	MaxBackups int    `toml:"MaxBackups" yaml:"MaxBackups"`
	MaxAge     int    `toml:"MaxAge" yaml:"MaxAge"` // days
	Compress   bool   `toml:"Compress" yaml:"Compress"`
}

// Session 会话配置：模式和目标地址
type Session struct {
	Mode string `toml:"Mode" yaml:"Mode"`
	Host string `toml:"Host" yaml:"Host"`
	Port int    `toml:"Port" yaml:"Port"`
}

// TLS 证书配置
type TLS struct {
	CAFile   string `toml:"CAFile" yaml:"CAFile"`
	CertFile string `toml:"CertFile" yaml:"CertFile"`
	KeyFile  string `toml:"KeyFile" yaml:"KeyFile"`
}

// Relay 转发配置
type Relay struct {
	RateLimit int64  `toml:"RateLimit" yaml:"RateLimit"` // bytes per second, 0 = unlimited
	Proxy     string `toml:"Proxy" yaml:"Proxy"`         // socks5://host:port
}

// Access 监听模式下允许的来源网段
type Access struct {
	Allow []string `toml:"Allow" yaml:"Allow"`
}

// Config 主配置结构体
type Config struct {
	Log     Log     `toml:"Log" yaml:"Log"`
	Session Session `toml:"Session" yaml:"Session"`
	TLS     TLS     `toml:"TLS" yaml:"TLS"`
	Relay   Relay   `toml:"Relay" yaml:"Relay"`
	Access  Access  `toml:"Access" yaml:"Access"`
}

// SetDefaults 填充未设置的可选字段
func (c *Config) SetDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.File != "" {
		if c.Log.MaxSize == 0 {
			c.Log.MaxSize = 20
		}
		if c.Log.MaxBackups == 0 {
			c.Log.MaxBackups = 5
		}
		if c.Log.MaxAge == 0 {
			c.Log.MaxAge = 28
		}
	}
	if c.Session.Host == "" {
		c.Session.Host = "127.0.0.1"
	}
}
