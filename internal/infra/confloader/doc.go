// Package confloader loads the geminid configuration.
//
// It uses koanf to merge several sources into one typed struct. Priority,
// highest first:
//
//  1. Command-line flags (WithOverrides)
//  2. Environment variables (GEMINID_SECTION_KEY)
//  3. The YAML configuration file
//  4. Values already present in the target struct (defaults)
//
// A Watcher reports changes to the configuration file so a running server
// can re-apply the settings that are safe to change live.
package confloader
