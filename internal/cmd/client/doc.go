// Package client provides the `logos` command-line client.
//
// The CLI talks to the Logos HTTP API to submit and read entries, follow
// the live stream, administer the access registry and pull archives from
// a terminal. It is primarily intended for operators and integrators.
//
// Installation
//
//	go install github.com/hyperrixel/logos/cmd/logos@latest
//
// Or build from this repo and use the embedded `logos` binary.
//
// # Address and identity configuration
//
// The HTTP base URL is discovered by the application that embeds the
// commands via a BaseURLFunc. When using the standalone binary, it is
// read from LOGOS_HTTP (default http://127.0.0.1:8080). Every call runs
// as a principal: pass --principal (or -p), or set LOGOS_PRINCIPAL.
//
// Usage
//
//	logos entry post -p ada \
//	    --tag mission/alpha --tag science \
//	    --attr note="spectrometer online" \
//	    --attr temp_c:float=21.4 --attr window:time=2026-03-01T12:00:00Z
//
//	logos entry get -p ada --id 42
//	logos entry get -p ada --id 42 --current   # follow the revision chain
//
//	logos entry range -p ada --from-seq 1 --limit 50
//	logos entry range -p ada --cursor 000000000000002a
//
//	# Follow new commits; backfill from a time or resume from a cursor
//	logos tail -p ada --tags 'mission/*'
//	logos tail -p ada --from 2026-03-01T00:00:00Z
//	logos tail -p ada --cursor 000000000000002a --filter 'author == "hab-7"'
//
//	# Registry administration (admin principals only)
//	logos admin principal put -p root --id ada --kind human --role science
//	logos admin rule put -p root --role science --pattern 'mission/*' \
//	    --action read --action write
//	logos admin rule list -p root
//
//	# Attachments: register metadata, then reference the id on post
//	logos blob register -p ada --file ./pano.jpg
//	logos entry post -p ada --tag mission/alpha --attach b-1a2b3c
//
//	# Archive: download, then verify or list offline
//	logos export -p root --out mission.zst --from-seq 1
//	logos archive inspect --file mission.zst
//	logos archive inspect --file mission.zst --list
//
// Notes
//
//   - tail consumes the SSE endpoint (/v1/subscribe) and prints one JSON
//     object per event, carrying the resume cursor alongside the entry.
//     Interrupting with Ctrl-C exits cleanly; pass --limit to stop after
//     N entries.
//   - entry post builds the envelope from flags; --json or --file sends
//     a raw envelope instead. The author is always the calling
//     principal.
//   - export asks the server for a zstd-compressed record archive and
//     re-reads the file before reporting success, so the printed summary
//     doubles as an integrity check.
package client
