// SPDX-License-Identifier: ISC
// Copyright (c) 2022-2023 Slide Computer
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package configuration_test

import (
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/slide-computer/slided/account"
	"github.com/slide-computer/slided/configuration"
)

var (
	registry  = account.NewAccount(account.Identity{0x00, 0x00, 0x00, 0x00, 0x00, 0x30, 0x01, 0x01}, nil)
	custodian = account.NewAccount(account.Identity{0xc0, 0x57, 0x0d}, nil)
)

func writeConfigFile(t *testing.T, dir string, content string) string {
	fileName := filepath.Join(dir, "slided.conf")
	err := ioutil.WriteFile(fileName, []byte(content), 0600)
	if nil != err {
		t.Fatalf("write config error: %s", err)
	}
	return fileName
}

func TestGetConfiguration(t *testing.T) {
	dir, err := ioutil.TempDir("", "configuration-test")
	if nil != err {
		t.Fatalf("tempdir error: %s", err)
	}
	defer os.RemoveAll(dir)

	content := fmt.Sprintf(`
local M = {}

M.data_directory = "."
M.block_size = 64

M.registry = {
    identity = %q,
    name = "Example Registry",
    symbol = "EXR",
    custodian = %q,
}

M.logging = {
    size = 1048576,
    count = 10,
    levels = {
        DEFAULT = "info",
    },
}

return M
`, registry.String(), custodian.String())

	fileName := writeConfigFile(t, dir, content)
	options, err := configuration.GetConfiguration(fileName)
	if nil != err {
		t.Fatalf("configuration error: %s", err)
	}

	assert.Equal(t, 64, options.BlockSize, "block size")
	assert.Equal(t, "Example Registry", options.Registry.Name, "name")
	assert.Equal(t, "EXR", options.Registry.Symbol, "symbol")
	assert.Equal(t, registry.String(), options.Registry.Identity, "identity")
	assert.Equal(t, "info", options.Logging.Levels["DEFAULT"], "log level")

	// defaults expand relative to the data directory
	assert.Equal(t, filepath.Join(dir, "history.stable"), options.StableFile, "stable file")
	assert.Equal(t, filepath.Join(dir, "registry"), options.SnapshotDatabase, "snapshot database")
	assert.Equal(t, filepath.Join(dir, "log"), options.Logging.Directory, "log directory")
}

func TestGetConfigurationRejectsBadIdentity(t *testing.T) {
	dir, err := ioutil.TempDir("", "configuration-test")
	if nil != err {
		t.Fatalf("tempdir error: %s", err)
	}
	defer os.RemoveAll(dir)

	fileName := writeConfigFile(t, dir, `
local M = {}
M.data_directory = "."
M.registry = {
    identity = "not-an-identity",
    name = "Example Registry",
    symbol = "EXR",
}
return M
`)
	_, err = configuration.GetConfiguration(fileName)
	if nil == err {
		t.Fatal("invalid registry identity must be rejected")
	}
}

func TestGetConfigurationRejectsBadBlockSize(t *testing.T) {
	dir, err := ioutil.TempDir("", "configuration-test")
	if nil != err {
		t.Fatalf("tempdir error: %s", err)
	}
	defer os.RemoveAll(dir)

	fileName := writeConfigFile(t, dir, fmt.Sprintf(`
local M = {}
M.data_directory = "."
M.block_size = -1
M.registry = {
    identity = %q,
    name = "Example Registry",
    symbol = "EXR",
}
return M
`, registry.String()))
	_, err = configuration.GetConfiguration(fileName)
	if nil == err {
		t.Fatal("invalid block size must be rejected")
	}
}
