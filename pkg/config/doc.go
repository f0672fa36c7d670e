/*
Package config loads the registry's YAML configuration file and fills
in defaults for anything left unset, the way cmd/warren's apply
command decodes resource YAML with gopkg.in/yaml.v3.

A Config is usually loaded once at process start and handed to each
package's constructor (pkg/storage.NewBoltStore(cfg.DataDir),
pkg/archive.New(cfg.TempRoot), and so on).
*/
package config
