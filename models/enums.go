package models

import "fmt"

type Tab string

const (
	TabDashboard  Tab = "dashboard"
	TabAIChat     Tab = "ai-chat"
	TabInventory  Tab = "inventory"
	TabListing    Tab = "listing"
	TabTrends     Tab = "trends"
	TabOrders     Tab = "orders"
	TabProfile    Tab = "profile"
	TabAddProduct Tab = "addProduct"
)

func ParseTab(s string) (Tab, error) {
	switch t := Tab(s); t {
	case TabDashboard, TabAIChat, TabInventory, TabListing, TabTrends, TabOrders, TabProfile, TabAddProduct:
		return t, nil
	default:
		return "", fmt.Errorf("invalid tab %q", s)
	}
}

// Tone is the colour family a status badge renders with.
type Tone string

const (
	ToneGreen  Tone = "green"
	ToneOrange Tone = "orange"
	TonePurple Tone = "purple"
	ToneBlue   Tone = "blue"
	ToneYellow Tone = "yellow"
	ToneRed    Tone = "red"
	ToneGray   Tone = "gray"
)

type Trend string

const (
	TrendUp      Trend = "up"
	TrendDown    Trend = "down"
	TrendNeutral Trend = "neutral"
)

// DashboardSummary is the AI weekly summary for the dashboard.
type DashboardSummary struct {
	Focus       string `json:"focus"`
	Opportunity string `json:"opportunity"`
	Caution     string `json:"caution"`
	Action      string `json:"action"`
}
