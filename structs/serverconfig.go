package structs

import (
	"sync"

	goccy "github.com/goccy/go-json"
)

// ServerConfig holds the runtime switches of a server instance with thread-safe access.
// All fields are private and accessed via getters/setters that handle locking.
type ServerConfig struct {
	mu             sync.RWMutex
	allowChaotic   bool // wheel spins and powerups
	negativeScores bool // balances may drop below zero
}

func NewServerConfig(allowChaotic bool) *ServerConfig {
	return &ServerConfig{
		allowChaotic: allowChaotic,
	}
}

func (c *ServerConfig) GetAllowChaotic() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.allowChaotic
}

func (c *ServerConfig) SetAllowChaotic(b bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.allowChaotic = b
}

func (c *ServerConfig) GetNegativeScores() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.negativeScores
}

func (c *ServerConfig) SetNegativeScores(b bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.negativeScores = b
}

type serverConfigJSON struct {
	AllowChaoticCommands bool `json:"allow_chaotic_commands"`
	NegativeScores       bool `json:"negative_scores"`
}

func (c *ServerConfig) MarshalJSON() ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return goccy.Marshal(serverConfigJSON{
		AllowChaoticCommands: c.allowChaotic,
		NegativeScores:       c.negativeScores,
	})
}

func (c *ServerConfig) UnmarshalJSON(data []byte) error {
	var j serverConfigJSON
	if err := goccy.Unmarshal(data, &j); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.allowChaotic = j.AllowChaoticCommands
	c.negativeScores = j.NegativeScores
	return nil
}
