package tcc

// PoolSeasoning represents the configuration values.
type PoolSeasoning struct {
	PoolConfig       *PoolConfig       `json:"PoolConfig" yaml:"PoolConfig"`
	DispatchConfig   *DispatchConfig   `json:"DispatchConfig" yaml:"DispatchConfig"`
	ConnectionConfig *ConnectionConfig `json:"ConnectionConfig" yaml:"ConnectionConfig"`
}

// PoolConfig represents settings for creating/configuring the ConnectionPool.
type PoolConfig struct {
	ApplicationName      string `json:"ApplicationName" yaml:"ApplicationName"`
	MaxConnectionCount   uint64 `json:"MaxConnectionCount" yaml:"MaxConnectionCount"`     // number of connections to create in the pool
	SleepOnErrorInterval uint32 `json:"SleepOnErrorInterval" yaml:"SleepOnErrorInterval"` // sleep length on errors (ms)
	ValidateOnCheckout   bool   `json:"ValidateOnCheckout" yaml:"ValidateOnCheckout"`     // run the health probe on every checkout
	ValidateOnCheckin    bool   `json:"ValidateOnCheckin" yaml:"ValidateOnCheckin"`       // run the health probe on every checkin
}

// DispatchConfig represents settings for the BlockingDispatcher.
type DispatchConfig struct {
	MaxWorkerCount uint64 `json:"MaxWorkerCount" yaml:"MaxWorkerCount"` // cap on concurrently running blocking closures
}

// ConnectionConfig represents immutable settings used to open driver connections.
type ConnectionConfig struct {
	DriverName     string            `json:"DriverName" yaml:"DriverName"` // mysql or amqp
	Address        string            `json:"Address" yaml:"Address"`
	Username       string            `json:"Username" yaml:"Username"`
	Password       string            `json:"Password" yaml:"Password"`
	ConnectTimeout uint32            `json:"ConnectTimeout" yaml:"ConnectTimeout"` // seconds
	Options        map[string]string `json:"Options" yaml:"Options"`               // recognized pool-specific options
}
