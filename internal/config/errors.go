package config

import "errors"

var (
	ErrConfigFileNotFound = errors.New("config file not found")
	ErrConfigFileRead     = errors.New("cannot read config file")
	ErrConfigInvalid      = errors.New("invalid config file")
	ErrDocumentPathEmpty  = errors.New("config_file must not be empty")
	ErrDatamodelsDirEmpty = errors.New("datamodels_dir must not be empty")
)
