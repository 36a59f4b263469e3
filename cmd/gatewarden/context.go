package main

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"gatewarden/internal/config"
	"gatewarden/internal/ipc"
)

type commandContext struct {
	configFlag   *string
	apiFlag      *string
	operatorFlag *string

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error
}

func newCommandContext(configFlag, apiFlag, operatorFlag *string) *commandContext {
	return &commandContext{
		configFlag:   configFlag,
		apiFlag:      apiFlag,
		operatorFlag: operatorFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, path, _, err := config.Load(flagValue(c.configFlag))
		if err != nil {
			c.configErr = err
			return
		}
		if bind := flagValue(c.apiFlag); bind != "" {
			cfg.Paths.APIBind = bind
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = path
	})
	return c.config, c.configErr
}

func (c *commandContext) configValue() *config.Config {
	cfg, _ := c.ensureConfig()
	return cfg
}

// operator is the identity recorded as resolved_by.
func (c *commandContext) operator() string {
	if op := flagValue(c.operatorFlag); op != "" {
		return op
	}
	return strings.TrimSpace(os.Getenv("USER"))
}

func (c *commandContext) withClient(fn func(*ipc.Client) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	client, err := ipc.Dial(cfg.Paths.APIBind, cfg.Paths.APIToken)
	if err != nil {
		return wrapClientError(err, cfg.Paths.APIBind)
	}
	defer client.Close()
	if op := c.operator(); op != "" {
		client = client.WithOperator(op)
	}
	if err := fn(client); err != nil {
		return wrapClientError(err, cfg.Paths.APIBind)
	}
	return nil
}

func wrapClientError(err error, bind string) error {
	if ipc.IsUnavailable(err) {
		return fmt.Errorf("connect to daemon: nothing answering at %s; start the daemon with `gatewarden start`", bind)
	}
	return err
}

func flagValue(flag *string) string {
	if flag == nil {
		return ""
	}
	return strings.TrimSpace(*flag)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
