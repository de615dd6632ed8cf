// Copyright 2019 Featix Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package bed

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// A validator checks a single column of a feature line.  The returned error
// names the column and quotes the offending text.
type validator func(field, name string) error

var textPattern = regexp.MustCompile(`^[-\w]*$`)

func validateText(field, name string) error {
	if !textPattern.MatchString(field) {
		return fmt.Errorf("field %s: %q is not allowed", name, field)
	}
	return nil
}

func validateInt(field, name string) error {
	if _, err := strconv.ParseInt(field, 10, 64); err != nil {
		return fmt.Errorf("field %s: %q is not a number", name, field)
	}
	return nil
}

func validateFloat(field, name string) error {
	if _, err := strconv.ParseFloat(field, 64); err != nil {
		return fmt.Errorf("field %s: %q is not a float number", name, field)
	}
	return nil
}

// validateNone accepts anything.  The strand column would use a fixed
// enumeration, but real BED files carry too many malformed strand values to
// reject them.
func validateNone(string, string) error {
	return nil
}

func validateRGB(field, name string) error {
	// A bare "0" is a common stand-in for a blank color value.
	if field == "0" {
		return nil
	}
	items := strings.Split(field, ",")
	if len(items) != 3 {
		return fmt.Errorf("field %s: %q is not a valid color", name, field)
	}
	for _, item := range items {
		n, err := strconv.Atoi(item)
		if err != nil || n < 0 || n > 255 {
			return fmt.Errorf("field %s: %q is not a valid color", name, field)
		}
	}
	return nil
}

func validateIntList(field, name string) error {
	for _, item := range strings.Split(field, ",") {
		if _, err := strconv.ParseInt(item, 10, 64); err != nil {
			return fmt.Errorf("field %s: %q is not a valid block list", name, field)
		}
	}
	return nil
}

// columns describes the twelve BED columns in order.  The score column is
// validated as a float because many files put non-integer scores there.
var columns = []struct {
	name     string
	validate validator
}{
	{"contig name", validateText},
	{"start", validateInt},
	{"end", validateInt},
	{"name", validateText},
	{"score", validateFloat},
	{"strand", validateNone},
	{"thickStart", validateInt},
	{"thickEnd", validateInt},
	{"itemRgb", validateRGB},
	{"blockCount", validateInt},
	{"blockSizes", validateIntList},
	{"blockStarts", validateIntList},
}

// acceptedFieldCounts lists the legal BED field counts.  Lines with twelve
// or more fields are accepted, with the surplus treated as extra trailing
// fields.
var acceptedFieldCounts = map[int]bool{3: true, 4: true, 5: true, 6: true, 8: true, 9: true, 12: true}

// validateFeature checks a single split feature line.  The whole record
// fails on the first violating column.
func validateFeature(fields []string) error {
	n := len(fields)
	if !acceptedFieldCounts[n] && n < 12 {
		return fmt.Errorf("feature has wrong number of fields (%d)", n)
	}
	for i, col := range columns {
		if i >= n {
			break
		}
		if err := col.validate(fields[i], col.name); err != nil {
			return err
		}
	}
	if n == 12 {
		count, err := strconv.Atoi(fields[9])
		if err != nil {
			return fmt.Errorf("field blockCount: %q is not a number", fields[9])
		}
		if count != len(strings.Split(fields[10], ",")) || count != len(strings.Split(fields[11], ",")) {
			return fmt.Errorf("number of blocks does not match number of sizes")
		}
	}
	return nil
}
