// Copyright 2025 Complyd Contributors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package retention

import (
	"fmt"
	"strings"
)

// LocationResolver maps a logical data-type name to the filesystem path the
// engine should scan. It is an injected collaborator: the engine carries no
// knowledge of the surrounding application's directory layout.
type LocationResolver interface {
	// Resolve returns the storage location for dataType. The second return
	// is false when the data type has no configured location.
	Resolve(dataType string) (string, bool)
}

// StaticResolver resolves data types from a fixed map
type StaticResolver map[string]string

// Resolve implements LocationResolver
func (r StaticResolver) Resolve(dataType string) (string, bool) {
	path, ok := r[dataType]
	return path, ok
}

// ParseLocations builds a StaticResolver from a "type=path,type=path"
// configuration string.
func ParseLocations(spec string) (StaticResolver, error) {
	resolver := StaticResolver{}
	if spec == "" {
		return resolver, nil
	}
	for _, pair := range strings.Split(spec, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		dataType, path, ok := strings.Cut(pair, "=")
		if !ok || dataType == "" || path == "" {
			return nil, fmt.Errorf("invalid location mapping: %q", pair)
		}
		resolver[strings.TrimSpace(dataType)] = strings.TrimSpace(path)
	}
	return resolver, nil
}
