package models

type HostInfo struct {
	MarketVersion   string `json:"market_version"`
	OperatingSystem string `json:"operating_system"`
	Architecture    string `json:"architecture"`
	CPUCores        int    `json:"cpu_cores"`
	Denom           string `json:"denom"`
	Paused          bool   `json:"paused"`
}
