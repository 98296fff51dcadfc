// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package clients

import "time"

func nowUnix() int64 {
	return time.Now().Unix()
}
