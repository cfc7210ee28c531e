// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

//go:build !linux

package ipc

import "net"

// checkPeer relies on the socket file mode where peer credentials are not
// available.
func checkPeer(net.Conn) error {
	return nil
}
