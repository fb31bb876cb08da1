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

package bridge

import "context"

// MessageHandler receives inbound broker messages. It runs on the broker
// client's receive path and must not block.
type MessageHandler func(topic string, payload []byte)

// Session is one connected broker session.
type Session interface {
	Subscribe(ctx context.Context, filters map[string]byte, handler MessageHandler) error
	Publish(ctx context.Context, topic string, qos byte, retained bool, payload []byte) error
	Close()
}

// Dialer opens broker sessions. onLost is called when an established
// session drops; it may be called more than once.
type Dialer interface {
	Dial(ctx context.Context, onLost func(error)) (Session, error)
}
