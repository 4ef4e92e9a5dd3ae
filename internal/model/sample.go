package model

import "time"

// ProcessSample is one row of the process table.
type ProcessSample struct {
	PID       int32   `json:"pid"`
	Name      string  `json:"name"`
	User      string  `json:"user"`
	CPU       float64 `json:"cpu"` // percent 0-100, normalized by logical cores
	Memory    uint64  `json:"memory"`
	DiskRead  uint64  `json:"disk_read"`  // bytes/s
	DiskWrite uint64  `json:"disk_write"` // bytes/s
	Status    string  `json:"status"`
}

// CoreSample is one logical CPU.
type CoreSample struct {
	Usage   float64  `json:"usage"`
	FreqMHz uint64   `json:"freq_mhz"`
	Temp    *float64 `json:"temp,omitempty"`
}

// DiskSample is one mounted filesystem and its backing block device.
type DiskSample struct {
	Mount       string   `json:"mount"`
	Device      string   `json:"device"`
	FS          string   `json:"fs"`
	Model       string   `json:"model,omitempty"`
	Total       uint64   `json:"total"`
	Used        uint64   `json:"used"`
	Free        uint64   `json:"free"`
	ReadRate    uint64   `json:"read_rate"`
	WriteRate   uint64   `json:"write_rate"`
	IsSSD       *bool    `json:"is_ssd,omitempty"`
	IsNVMe      bool     `json:"is_nvme"`
	Temp        *float64 `json:"temp,omitempty"`
	HealthPct   *uint8   `json:"health_pct,omitempty"`
	PowerCycles *uint64  `json:"power_cycles,omitempty"`
}

// NetworkSample is one interface.
type NetworkSample struct {
	Name      string `json:"name"`
	DownRate  uint64 `json:"down_rate"`
	UpRate    uint64 `json:"up_rate"`
	TotalDown uint64 `json:"total_down"`
	TotalUp   uint64 `json:"total_up"`
	PacketsRx uint64 `json:"packets_rx"`
	PacketsTx uint64 `json:"packets_tx"`
	ErrorsRx  uint64 `json:"errors_rx"`
	ErrorsTx  uint64 `json:"errors_tx"`
	IsUp      bool   `json:"is_up"`
}

// GpuSample holds a single device snapshot plus its bounded history.
type GpuSample struct {
	Index       int       `json:"index"`
	Vendor      string    `json:"vendor"`
	Name        string    `json:"name"`
	Util        float64   `json:"util"`
	MemUsed     uint64    `json:"mem_used"`
	MemTotal    uint64    `json:"mem_total"`
	Temp        float64   `json:"temp"`
	Power       float64   `json:"power"`
	ClockGfx    uint64    `json:"clock_gfx"`
	ClockMem    uint64    `json:"clock_mem"`
	Fan         *float64  `json:"fan,omitempty"`
	Driver      string    `json:"driver,omitempty"`
	UtilHistory []float64 `json:"util_history,omitempty"`
	MemHistory  []float64 `json:"mem_history,omitempty"`
}

// MemPercent is the share of VRAM in use.
func (g GpuSample) MemPercent() float64 {
	if g.MemTotal == 0 {
		return 0
	}
	return float64(g.MemUsed) / float64(g.MemTotal) * 100
}

// ContainerSample is one running container. The string fields are preformatted
// for display; the numeric fields carry the same values unformatted.
type ContainerSample struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status"`
	Image  string `json:"image"`
	Ports  string `json:"ports"`

	CPU       string `json:"cpu"`
	Memory    string `json:"memory"`
	NetDown   string `json:"net_down"`
	NetUp     string `json:"net_up"`
	DiskRead  string `json:"disk_read"`
	DiskWrite string `json:"disk_write"`

	CPUPercent float64 `json:"cpu_percent"`
	MemUsage   uint64  `json:"mem_usage"`
	NetRx      uint64  `json:"net_rx"`
	NetTx      uint64  `json:"net_tx"`
	BlockRead  uint64  `json:"block_read"`
	BlockWrite uint64  `json:"block_write"`
}

// Sensor kinds, in display order.
const (
	SensorTemp    = "temp"
	SensorFan     = "fan"
	SensorVoltage = "in"
	SensorPower   = "power"
	SensorCurrent = "curr"
)

// SensorSample is one hwmon reading.
type SensorSample struct {
	Label    string   `json:"label"`
	Chip     string   `json:"chip"`
	Kind     string   `json:"kind"`
	Value    float64  `json:"value"`
	Unit     string   `json:"unit"`
	Max      *float64 `json:"max,omitempty"`
	Critical *float64 `json:"critical,omitempty"`
}

// Temperatures groups the headline thermal readings.
type Temperatures struct {
	CPU         *float64  `json:"cpu,omitempty"`
	GPUs        []float64 `json:"gpus,omitempty"`
	Motherboard *float64  `json:"motherboard,omitempty"`
}

// LoadAverage mirrors /proc/loadavg.
type LoadAverage struct {
	Load1  float64 `json:"load1"`
	Load5  float64 `json:"load5"`
	Load15 float64 `json:"load15"`
}

// GlobalUsage aggregates host-wide figures and the cumulative histories.
type GlobalUsage struct {
	CPU        float64     `json:"cpu"`
	MemUsed    uint64      `json:"mem_used"`
	MemTotal   uint64      `json:"mem_total"`
	MemCached  uint64      `json:"mem_cached"`
	SwapUsed   uint64      `json:"swap_used"`
	SwapTotal  uint64      `json:"swap_total"`
	GPUUtil    *float64    `json:"gpu_util,omitempty"`
	NetDown    uint64      `json:"net_down"`
	NetUp      uint64      `json:"net_up"`
	DiskRead   uint64      `json:"disk_read"`
	DiskWrite  uint64      `json:"disk_write"`
	MemoryType string      `json:"memory_type"`
	MemoryGen  string      `json:"memory_gen"`
	MemorySpd  string      `json:"memory_speed"`
	MemoryTemp *float64    `json:"memory_temp,omitempty"`
	Load       LoadAverage `json:"load"`
	Uptime     uint64      `json:"uptime"`
	BootTime   uint64      `json:"boot_time"`

	CPUHistory       []float64 `json:"cpu_history"`
	MemHistory       []float64 `json:"mem_history"`
	NetDownHistory   []float64 `json:"net_down_history"`
	NetUpHistory     []float64 `json:"net_up_history"`
	DiskReadHistory  []float64 `json:"disk_read_history"`
	DiskWriteHistory []float64 `json:"disk_write_history"`
	GPUHistory       []float64 `json:"gpu_history"`
}

// MemPercent is used memory as a share of total.
func (g GlobalUsage) MemPercent() float64 {
	if g.MemTotal == 0 {
		return 0
	}
	return float64(g.MemUsed) / float64(g.MemTotal) * 100
}

// DetailedProcess is the expanded record for a selected pid.
type DetailedProcess struct {
	PID       int32    `json:"pid"`
	Name      string   `json:"name"`
	User      string   `json:"user"`
	Status    string   `json:"status"`
	CPU       float64  `json:"cpu"`
	RSS       uint64   `json:"rss"`
	VMS       uint64   `json:"vms"`
	Command   string   `json:"command"`
	StartTime string   `json:"start_time"`
	Parent    *int32   `json:"parent,omitempty"`
	Environ   []string `json:"environ,omitempty"`
	Threads   int32    `json:"threads"`
	FDs       *int32   `json:"fds,omitempty"`
	Cwd       string   `json:"cwd,omitempty"`
}

// SystemInfo is the set of static host facts read once at startup.
type SystemInfo struct {
	OS            string      `json:"os"`
	Kernel        string      `json:"kernel"`
	Hostname      string      `json:"hostname"`
	CPUModel      string      `json:"cpu_model"`
	PhysicalCores int         `json:"physical_cores"`
	LogicalCores  int         `json:"logical_cores"`
	TotalMemory   uint64      `json:"total_memory"`
	MemoryModules []string    `json:"memory_modules,omitempty"`
	BootTime      string      `json:"boot_time"`
	Uptime        string      `json:"uptime"`
	Load          LoadAverage `json:"load"`
	Features      Features    `json:"features"`
}

// Features reports which optional subsystems are usable on this host.
type Features struct {
	Docker       bool   `json:"docker"`
	DockerReason string `json:"docker_reason,omitempty"`
	GPU          bool   `json:"gpu"`
	Network      bool   `json:"network"`
	SafeMode     bool   `json:"safe_mode"`
}

// Snapshot is the full result of one collection cycle.
type Snapshot struct {
	CapturedAt     time.Time         `json:"captured_at"`
	Processes      []ProcessSample   `json:"processes"`
	Cores          []CoreSample      `json:"cores"`
	Disks          []DiskSample      `json:"disks"`
	Networks       []NetworkSample   `json:"networks"`
	GPUs           []GpuSample       `json:"gpus"`
	Containers     []ContainerSample `json:"containers"`
	Temperatures   Temperatures      `json:"temperatures"`
	Sensors        []SensorSample    `json:"sensors"`
	Global         GlobalUsage       `json:"global"`
	Detailed       *DetailedProcess  `json:"detailed,omitempty"`
	ContainerError string            `json:"container_error,omitempty"`
	GPUError       string            `json:"gpu_error,omitempty"`
	CollectionCost time.Duration     `json:"collection_cost"`
	Slow           bool              `json:"slow"`
}

// Zero returns an empty snapshot for initialization.
func Zero() Snapshot { return Snapshot{CapturedAt: time.Now()} }
