// SPDX-License-Identifier: ISC
// Copyright (c) 2022-2023 Slide Computer
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package configuration

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/bitmark-inc/logger"

	"github.com/slide-computer/slided/account"
	"github.com/slide-computer/slided/blockstore"
	"github.com/slide-computer/slided/util"
)

// basic defaults (directories and files are relative to the "DataDirectory" from the configuration file)
const (
	defaultDataDirectory = "" // this will error; use "." for the same directory as the config file

	defaultStableFile       = "history.stable"
	defaultSnapshotDatabase = "registry"

	defaultLogDirectory = "log"
	defaultLogFile      = "slided.log"
	defaultLogCount     = 10          //  number of log files retained
	defaultLogSize      = 1024 * 1024 // rotate when <logfile> exceeds this size
)

// to hold log levels
type LoglevelMap map[string]string

// path expanded or calculated defaults
var defaultLogLevels = LoglevelMap{
	logger.DefaultTag: "critical",
}

// RegistryType - the token registry settings
type RegistryType struct {
	Identity  string `gluamapper:"identity" json:"identity"`
	Name      string `gluamapper:"name" json:"name"`
	Symbol    string `gluamapper:"symbol" json:"symbol"`
	Custodian string `gluamapper:"custodian" json:"custodian"`
}

// Configuration - the full configuration tree
type Configuration struct {
	DataDirectory string `gluamapper:"data_directory" json:"data_directory"`
	PidFile       string `gluamapper:"pidfile" json:"pidfile"`

	StableFile       string `gluamapper:"stable_file" json:"stable_file"`
	SnapshotDatabase string `gluamapper:"snapshot_database" json:"snapshot_database"`
	BlockSize        int    `gluamapper:"block_size" json:"block_size"`

	Registry RegistryType         `gluamapper:"registry" json:"registry"`
	Logging  logger.Configuration `gluamapper:"logging" json:"logging"`
}

// GetConfiguration - read, decode and verify the configuration
func GetConfiguration(configurationFileName string) (*Configuration, error) {

	configurationFileName, err := filepath.Abs(filepath.Clean(configurationFileName))
	if nil != err {
		return nil, err
	}

	// absolute path to the main directory
	dataDirectory, _ := filepath.Split(configurationFileName)

	options := &Configuration{

		DataDirectory: defaultDataDirectory,
		PidFile:       "", // no PidFile by default

		StableFile:       defaultStableFile,
		SnapshotDatabase: defaultSnapshotDatabase,
		BlockSize:        blockstore.DefaultBlockSize,

		Logging: logger.Configuration{
			Directory: defaultLogDirectory,
			File:      defaultLogFile,
			Size:      defaultLogSize,
			Count:     defaultLogCount,
			Levels:    defaultLogLevels,
		},
	}

	if err := ParseConfigurationFile(configurationFileName, options); nil != err {
		return nil, err
	}

	if options.BlockSize < 1 || options.BlockSize > blockstore.MaximumBlockSize {
		return nil, fmt.Errorf("block_size: %d is out of range [1..%d]", options.BlockSize, blockstore.MaximumBlockSize)
	}

	// the registry identity and the custodian must decode
	if _, err := account.AccountFromString(options.Registry.Identity); nil != err {
		return nil, fmt.Errorf("registry identity: %q is not valid: %s", options.Registry.Identity, err)
	}
	if "" != options.Registry.Custodian {
		if _, err := account.AccountFromString(options.Registry.Custodian); nil != err {
			return nil, fmt.Errorf("registry custodian: %q is not valid: %s", options.Registry.Custodian, err)
		}
	}
	if "" == options.Registry.Name || "" == options.Registry.Symbol {
		return nil, fmt.Errorf("registry name and symbol must be set")
	}

	// ensure absolute data directory
	if "" == options.DataDirectory || "~" == options.DataDirectory {
		return nil, fmt.Errorf("Path: %q is not a valid directory", options.DataDirectory)
	} else if "." == options.DataDirectory {
		options.DataDirectory = dataDirectory // same directory as the configuration file
	} else {
		options.DataDirectory = filepath.Clean(options.DataDirectory)
	}

	// this directory must exist - i.e. must be created prior to running
	if fileInfo, err := os.Stat(options.DataDirectory); nil != err {
		return nil, err
	} else if !fileInfo.IsDir() {
		return nil, fmt.Errorf("Path: %q is not a directory", options.DataDirectory)
	}

	// force all relevant items to be absolute paths
	// if not, assign them to the data directory
	mustBeAbsolute := []*string{
		&options.StableFile,
		&options.SnapshotDatabase,
		&options.Logging.Directory,
	}
	for _, f := range mustBeAbsolute {
		*f = util.EnsureAbsolute(options.DataDirectory, *f)
	}

	// optional absolute paths i.e. blank or an absolute path
	optionalAbsolute := []*string{
		&options.PidFile,
	}
	for _, f := range optionalAbsolute {
		if "" != *f {
			*f = util.EnsureAbsolute(options.DataDirectory, *f)
		}
	}

	// fail if the log file is not a simple file name
	switch filepath.Dir(options.Logging.File) {
	case "", ".":
	default:
		return nil, fmt.Errorf("Files: %q is not plain name", options.Logging.File)
	}

	// make absolute and create directories if they do not already exist
	for _, d := range []*string{
		&options.Logging.Directory,
	} {
		*d = util.EnsureAbsolute(options.DataDirectory, *d)
		if err := os.MkdirAll(*d, 0700); nil != err {
			return nil, err
		}
	}

	// done
	return options, nil
}
