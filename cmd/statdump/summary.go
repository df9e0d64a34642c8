package main

import (
	"sort"

	"github.com/ryandielhenn/r2rmesh/pkg/router"
)

type summaryKey struct {
	Peer      string
	Type      string
	Direction router.Direction
}

type summaryRow struct {
	summaryKey
	Count int
	Bytes int
}

// summarize groups stats by peer, direction and (optionally) type, ordered
// by peer then type then direction.
func summarize(stats []router.MessageStat, byType bool) []summaryRow {
	idx := make(map[summaryKey]int)
	var rows []summaryRow
	for _, s := range stats {
		k := summaryKey{Peer: s.PeerID, Direction: s.Direction}
		if byType {
			k.Type = s.MsgType
		} else {
			k.Type = "*"
		}
		i, ok := idx[k]
		if !ok {
			i = len(rows)
			idx[k] = i
			rows = append(rows, summaryRow{summaryKey: k})
		}
		rows[i].Count++
		rows[i].Bytes += s.ContentSize
	}
	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.Peer != b.Peer {
			return a.Peer < b.Peer
		}
		if a.Type != b.Type {
			return a.Type < b.Type
		}
		return a.Direction < b.Direction
	})
	return rows
}
