package config

type AuthSource string

const (
	AuthNone   AuthSource = "none"
	AuthJWT    AuthSource = "jwt"
	AuthOAuth2 AuthSource = "oauth2"
)

type Auth struct {
	AuthSource AuthSource `mapstructure:"AUTH_SOURCE" default:"jwt"`
	JWTSecret  string     `mapstructure:"AUTH_JWT_SECRET" default:"seqpanel"`
	// ctl token 的有效期, 小时
	TokenTTL int `mapstructure:"AUTH_TOKEN_TTL" default:"12"`
}

type Database struct {
	Host     string `mapstructure:"DATABASE_HOST" default:"localhost"`
	Port     int    `mapstructure:"DATABASE_PORT" default:"5432"`
	Name     string `mapstructure:"DATABASE_NAME" default:"opdb"`
	User     string `mapstructure:"DATABASE_USER" default:"postgres"`
	Password string `mapstructure:"DATABASE_PASSWORD" default:"seqpanel"`
}

type Redis struct {
	Host     string `mapstructure:"REDIS_HOST" default:"127.0.0.1"`
	Port     int    `mapstructure:"REDIS_PORT" default:"6379"`
	Password string `mapstructure:"REDIS_PASSWORD"`
	DB       int    `mapstructure:"REDIS_DB" default:"0"`
}

type Server struct {
	Platform string `mapstructure:"PLATFORM" default:"pfs"`
	Service  string `mapstructure:"SERVICE" default:"seqpanel"`
	Port     int    `mapstructure:"WEB_PORT" default:"8080"`
	// 同时连接的上限, 0 不限制
	MaxConns int    `mapstructure:"WEB_MAX_CONNS" default:"256"`
	Env      string `mapstructure:"ENV" default:"dev"`
}

type OAuth2 struct {
	ClientID     string   `mapstructure:"OAUTH2_CLIENT_ID"`
	ClientSecret string   `mapstructure:"OAUTH2_CLIENT_SECRET"`
	Scopes       []string `mapstructure:"OAUTH2_SCOPES" default:"[\"read\",\"write\",\"offline_access\"]"`
	TokenURL     string   `mapstructure:"OAUTH2_TOKEN_URL" default:"http://localhost:8000/api/login/oauth/access_token"`
	AuthURL      string   `mapstructure:"OAUTH2_AUTH_URL" default:"http://localhost:8000/login/oauth/authorize"`
	RedirectURL  string   `mapstructure:"OAUTH2_REDIRECT_URL" default:"http://localhost:8080/api/auth/callback"`
	UserInfoURL  string   `mapstructure:"OAUTH2_USERINFO_URL" default:"http://localhost:8000/api/get-account"`
}

type Log struct {
	LogPath  string `mapstructure:"LOG_PATH" default:"./info.log"`
	LogLevel string `mapstructure:"LOG_LEVEL" default:"info"`
}

type Trace struct {
	Version         string `mapstructure:"TRACE_VERSION" default:"0.0.1"`
	TraceEndpoint   string `mapstructure:"TRACE_TRACEENDPOINT" default:""`
	MetricEndpoint  string `mapstructure:"TRACE_METRICENDPOINT" default:""`
	TraceProject    string `mapstructure:"TRACE_TRACEPROJECT" default:""`
	TraceInstanceID string `mapstructure:"TRACE_TRACEINSTANCEID" default:""`
	TraceAK         string `mapstructure:"TRACE_TRACEAK" default:""`
	TraceSK         string `mapstructure:"TRACE_TRACESK" default:""`
}

// Actor is the bridge side: the token it presents when connecting.
type Actor struct {
	Token string `mapstructure:"ACTOR_TOKEN" default:""`
}

type Scheduler struct {
	DelayMinutes      int    `mapstructure:"SCHEDULER_DELAY_MINUTES" default:"0"`
	MinDelay          int    `mapstructure:"SCHEDULER_MIN_DELAY_MS" default:"2000"`
	PollInterval      int    `mapstructure:"SCHEDULER_POLL_MS" default:"500"`
	DispatchTimeLimit int    `mapstructure:"SCHEDULER_DISPATCH_HOURS" default:"168"`
	ControlTimeLimit  int    `mapstructure:"SCHEDULER_CONTROL_SECONDS" default:"5"`
	AbortCmd          string `mapstructure:"SCHEDULER_ABORT_CMD" default:"iic abortExposure"`
	FinishCmd         string `mapstructure:"SCHEDULER_FINISH_CMD" default:"iic finishExposure"`
	FinishNowCmd      string `mapstructure:"SCHEDULER_FINISH_NOW_CMD" default:"iic finishExposure now"`
}

type Console struct {
	Name        string `mapstructure:"CONSOLE_NAME" default:"sps"`
	DynamicPath string `mapstructure:"CONSOLE_DYNAMIC_PATH" default:""`
	PoolSize    int    `mapstructure:"CONSOLE_POOL_SIZE" default:"16"`
}
