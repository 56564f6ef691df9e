package config

import (
	"fmt"
	"os"
	"slices"
)

// OutputFormats lists the accepted values of the output option.
var OutputFormats = []string{"auto", "text", "markdown", "json"}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.RecipesDir == "" {
		return fmt.Errorf("recipes_dir is required")
	}
	if c.SourcesDir == "" {
		return fmt.Errorf("sources_dir is required")
	}
	if c.OutputDir == "" {
		return fmt.Errorf("output_dir is required")
	}
	if c.OutputFormat != "" && !slices.Contains(OutputFormats, c.OutputFormat) {
		return fmt.Errorf("invalid output format %q (want one of %v)", c.OutputFormat, OutputFormats)
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must not be negative, got %d", c.Workers)
	}
	if hub := c.Hub.ObjectStore(); hub != nil {
		if err := hub.Validate(); err != nil {
			return fmt.Errorf("invalid hub configuration: %w", err)
		}
	}
	return nil
}

// ValidateDirectories checks if required directories exist.
func (c *Config) ValidateDirectories() error {
	if _, err := os.Stat(c.RecipesDir); os.IsNotExist(err) {
		return fmt.Errorf("recipes directory does not exist: %s\nHint: Create the directory or use --recipes-dir to specify a different path", c.RecipesDir)
	}
	if _, err := os.Stat(c.SourcesDir); os.IsNotExist(err) {
		return fmt.Errorf("sources directory does not exist: %s\nHint: Create the directory or use --sources-dir to specify a different path", c.SourcesDir)
	}
	return nil
}
