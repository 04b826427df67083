/*
Copyright © 2020 NAME HERE <EMAIL ADDRESS>

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
//go:build linux

package cmd

import (
	perf "github.com/hodgesds/perf-utils"
)

// countInstructions runs fn under a hardware instruction counter. ran reports
// whether fn was called, so a caller can fall back when the counter is not
// available.
func countInstructions(fn func() error) (count uint64, ran bool, err error) {
	var fnErr error
	pv, err := perf.CPUInstructions(func() error {
		ran = true
		fnErr = fn()
		return fnErr
	})
	if fnErr != nil {
		return 0, ran, fnErr
	}
	if err != nil {
		return 0, ran, err
	}
	return pv.Value, ran, nil
}
