/*
Copyright 2022 The Numaproj Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package config

import (
	"bufio"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/numaproj/panestate/pkg/state/logstore"
	"github.com/numaproj/panestate/pkg/state/lsm"
)

// Tuning holds the parameters of a tuning file, by lower-cased name.
//
// A tuning file has one parameter per line:
//
//	# comment
//	name [=] value[, value...]   ; trailing comment
//
// Lines starting with '#' or ';' and blank lines are skipped, tokens starting
// with '=' are ignored and a token starting with '#' or ';' ends the line.
type Tuning map[string][]string

// ReadTuning parses a tuning file.
func ReadTuning(r io.Reader) (Tuning, error) {
	t := Tuning{}
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}
		tokens := strings.Fields(line)
		var kept []string
		for _, tok := range tokens[1:] {
			if strings.HasPrefix(tok, "#") || strings.HasPrefix(tok, ";") {
				break
			}
			if strings.HasPrefix(tok, "=") {
				continue
			}
			kept = append(kept, tok)
		}
		var params []string
		for _, p := range strings.Split(strings.Join(kept, " "), ",") {
			params = append(params, strings.TrimSpace(p))
		}
		t[strings.ToLower(tokens[0])] = params
	}
	return t, errors.Wrap(scanner.Err(), "reading tuning file")
}

// ReadTuningFile parses the tuning file at path.
func ReadTuningFile(path string) (Tuning, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening tuning file %s", path)
	}
	defer f.Close()
	return ReadTuning(f)
}

// Uint64 returns the first value of name, or zero when the name is absent.
func (t Tuning) Uint64(name string) (uint64, error) {
	params, ok := t[name]
	if !ok || len(params) == 0 || params[0] == "" {
		return 0, nil
	}
	v, err := strconv.ParseUint(params[0], 10, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "couldn't parse %s", name)
	}
	return v, nil
}

// LogOptions reads tablesize and logsize.
func (t Tuning) LogOptions() (logstore.Options, error) {
	var opts logstore.Options
	var err error
	if opts.TableSize, err = t.Uint64("tablesize"); err != nil {
		return opts, err
	}
	opts.LogSize, err = t.Uint64("logsize")
	return opts, err
}

// LSMOptions reads blocksize, lrusize, writebuffersize and hashindexsize.
func (t Tuning) LSMOptions() (lsm.Options, error) {
	var opts lsm.Options
	values := map[string]uint64{}
	for _, name := range []string{"blocksize", "lrusize", "writebuffersize", "hashindexsize"} {
		v, err := t.Uint64(name)
		if err != nil {
			return opts, err
		}
		values[name] = v
	}
	opts.BlockSize = int(values["blocksize"])
	opts.CacheSize = int64(values["lrusize"])
	opts.WriteBufferSize = values["writebuffersize"]
	opts.HashIndexSize = int64(values["hashindexsize"])
	return opts, nil
}
