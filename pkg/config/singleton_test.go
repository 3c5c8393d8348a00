package config

import "testing"

func TestSetAndGetConfig(t *testing.T) {
	prev := GetConfig()
	t.Cleanup(func() { SetConfig(prev) })

	cfg := Default()
	cfg.Engine.Workers = 3
	SetConfig(cfg)

	if got := GetConfig(); got != cfg {
		t.Fatal("GetConfig() did not return the config passed to SetConfig")
	}

	SetConfig(nil)
	if GetConfig() != nil {
		t.Error("GetConfig() after SetConfig(nil) should be nil")
	}
}
