// MIT License
//
// Copyright (c) 2022-2026 GoAkt Team
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package operation

import (
	"strings"

	"github.com/Zimbra/zm-mailbox-sub090/priority"
)

// Requester is the kind of client an operation runs on behalf of.
type Requester int

const (
	RequesterAdmin Requester = iota
	RequesterSOAP
	RequesterREST
	RequesterIMAP
	RequesterPOP
	RequesterSync
	RequesterBackground
)

var requesterNames = map[Requester]string{
	RequesterAdmin:      "admin",
	RequesterSOAP:       "soap",
	RequesterREST:       "rest",
	RequesterIMAP:       "imap",
	RequesterPOP:        "pop",
	RequesterSync:       "sync",
	RequesterBackground: "background",
}

// Priority maps the requester to its base priority. Unknown requesters get
// priority.Low.
func (r Requester) Priority() priority.Priority {
	switch r {
	case RequesterAdmin:
		return priority.Admin
	case RequesterSOAP:
		return priority.InteractiveHigh
	case RequesterREST:
		return priority.InteractiveLow
	case RequesterIMAP, RequesterPOP, RequesterSync:
		return priority.Batch
	default:
		return priority.Low
	}
}

func (r Requester) String() string {
	if name, ok := requesterNames[r]; ok {
		return name
	}
	return "unknown"
}

// ParseRequester returns the requester named name, ignoring case. Unknown
// names map to RequesterBackground.
func ParseRequester(name string) Requester {
	name = strings.ToLower(strings.TrimSpace(name))
	for requester, n := range requesterNames {
		if n == name {
			return requester
		}
	}
	return RequesterBackground
}
