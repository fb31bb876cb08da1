// Copyright 2025 Edgeo SCADA
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

// Package netif answers whether the device currently has a usable network
// link with an IP address.
package netif

import (
	"context"
	"net"
	"sync/atomic"
	"time"
)

// Reachability reports whether the network is associated and has an IP.
type Reachability interface {
	Up() bool
}

// InterfaceProbe checks the host's interfaces for one that is up, is not a
// loopback and carries a unicast address. If Name is set only that
// interface is considered.
type InterfaceProbe struct {
	Name string
}

// Up implements Reachability.
func (p InterfaceProbe) Up() bool {
	ifaces, err := net.Interfaces()
	if err != nil {
		return false
	}
	for _, ifc := range ifaces {
		if p.Name != "" && ifc.Name != p.Name {
			continue
		}
		if ifc.Flags&net.FlagUp == 0 || ifc.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := ifc.Addrs()
		if err != nil {
			continue
		}
		for _, a := range addrs {
			if ipn, ok := a.(*net.IPNet); ok && ipn.IP.IsGlobalUnicast() {
				return true
			}
		}
	}
	return false
}

// Static is a Reachability whose state is set explicitly.
type Static struct {
	up atomic.Bool
}

// NewStatic returns a Static in the given state.
func NewStatic(up bool) *Static {
	s := &Static{}
	s.up.Store(up)
	return s
}

// Up implements Reachability.
func (s *Static) Up() bool { return s.up.Load() }

// Set changes the reported state.
func (s *Static) Set(up bool) { s.up.Store(up) }

// WaitUp polls r every interval until it reports up or ctx is done.
func WaitUp(ctx context.Context, r Reachability, interval time.Duration) error {
	if r.Up() {
		return nil
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if r.Up() {
				return nil
			}
		}
	}
}
