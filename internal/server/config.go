package server

import (
	"fmt"
	"os"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"cardtable/internal/deck"
	"cardtable/internal/holdem"
	"cardtable/internal/room"
	"cardtable/internal/trick"
)

// ServerConfig represents the complete server configuration
type ServerConfig struct {
	Server ServerSettings `hcl:"server,block"`
	Trick  TrickSettings  `hcl:"trick,block"`
	Holdem HoldemSettings `hcl:"holdem,block"`
}

// ServerSettings contains server-level configuration
type ServerSettings struct {
	Address  string `hcl:"address,optional"`
	Port     int    `hcl:"port,optional"`
	LogLevel string `hcl:"log_level,optional"`
	LogFile  string `hcl:"log_file,optional"`
}

// TrickSettings configures trick-game rooms
type TrickSettings struct {
	HandSize  int    `hcl:"hand_size,optional"`
	TrumpSuit string `hcl:"trump_suit,optional"`
}

// HoldemSettings configures Hold'em rooms
type HoldemSettings struct {
	BaseBet    int `hcl:"base_bet,optional"`
	StartChips int `hcl:"start_chips,optional"`
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Server: ServerSettings{
			Address:  "localhost",
			Port:     8080,
			LogLevel: "info",
			LogFile:  "cardtable-server.log",
		},
		Trick: TrickSettings{
			HandSize: trick.DefaultHandSize,
		},
		Holdem: HoldemSettings{
			BaseBet:    holdem.DefaultBaseBet,
			StartChips: holdem.DefaultStartChips,
		},
	}
}

// LoadServerConfig loads server configuration from HCL file
func LoadServerConfig(filename string) (*ServerConfig, error) {
	// Check if file exists
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return DefaultServerConfig(), nil
	}

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file: %s", diags.Error())
	}

	var config ServerConfig
	diags = gohcl.DecodeBody(file.Body, nil, &config)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL: %s", diags.Error())
	}

	// Apply defaults for missing values
	if config.Server.Address == "" {
		config.Server.Address = "localhost"
	}
	if config.Server.Port == 0 {
		config.Server.Port = 8080
	}
	if config.Server.LogLevel == "" {
		config.Server.LogLevel = "info"
	}
	if config.Server.LogFile == "" {
		config.Server.LogFile = "cardtable-server.log"
	}
	if config.Trick.HandSize == 0 {
		config.Trick.HandSize = trick.DefaultHandSize
	}
	if config.Holdem.BaseBet == 0 {
		config.Holdem.BaseBet = holdem.DefaultBaseBet
	}
	if config.Holdem.StartChips == 0 {
		config.Holdem.StartChips = holdem.DefaultStartChips
	}

	return &config, nil
}

// Validate validates the server configuration
func (c *ServerConfig) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}

	if c.Trick.HandSize < 1 || c.Trick.HandSize*trick.Seats > 52 {
		return fmt.Errorf("invalid hand size: %d", c.Trick.HandSize)
	}
	if c.Trick.TrumpSuit != "" {
		if _, err := deck.ParseSuit(c.Trick.TrumpSuit); err != nil {
			return fmt.Errorf("invalid trump suit %q: %w", c.Trick.TrumpSuit, err)
		}
	}

	if c.Holdem.BaseBet <= 0 {
		return fmt.Errorf("base bet must be positive")
	}
	if c.Holdem.BaseBet%2 != 0 {
		return fmt.Errorf("base bet must be even so the small blind is whole")
	}
	if c.Holdem.StartChips < c.Holdem.BaseBet {
		return fmt.Errorf("start chips must cover at least one base bet")
	}

	return nil
}

// GameConfig converts the file settings into engine configuration
func (c *ServerConfig) GameConfig() (room.Config, error) {
	cfg := room.Config{
		Trick: trick.Config{
			HandSize: c.Trick.HandSize,
		},
		Holdem: holdem.Config{
			BaseBet:    c.Holdem.BaseBet,
			StartChips: c.Holdem.StartChips,
		},
	}

	if c.Trick.TrumpSuit != "" {
		suit, err := deck.ParseSuit(c.Trick.TrumpSuit)
		if err != nil {
			return room.Config{}, err
		}
		cfg.Trick.Trump = suit
		cfg.Trick.HasTrump = true
	}

	return cfg, nil
}

// GetServerAddress returns the full server address
func (c *ServerConfig) GetServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Address, c.Server.Port)
}
