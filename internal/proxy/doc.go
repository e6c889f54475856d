// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package proxy implements the session-scoped HLS proxy: the session
// registry, upstream fetches with replayed credentials, playlist rewriting
// and segment relay.
//
// Every URL a client sees points back at this service as
//
//	/hls/{sessionID}/master.m3u8
//	/hls/{sessionID}/media/{encodedAbsoluteURL}
//	/hls/{sessionID}/segment/{encodedAbsoluteURL}
//
// so clients never learn the upstream origin or its credentials.
package proxy
