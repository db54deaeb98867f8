// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package schema

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"

	"github.com/cpmech/gosl/chk"
)

// nodeTypeFiles lists every per-node-type table this loader looks for,
// named the way a per-material input set names its files: lower-case,
// underscore-joined.
var nodeTypeFiles = []string{
	"basin", "level_boundary", "flow_boundary", "linear_resistance",
	"manning_resistance", "tabulated_rating_curve", "pump", "outlet",
	"user_demand", "flow_demand", "level_demand", "discrete_control",
	"continuous_control", "pid_control",
}

// LoadCSV reads the node/link tables plus every per-node-type static/time
// table from dir, analogous to reading a paired mesh/material input set —
// the real DB/NetCDF readers stay external per §1; this loader only needs
// to make the repository runnable end to end from plain files.
func LoadCSV(dir string) (*Tables, error) {
	t := &Tables{Static: make(map[string][]StaticRow), Time: make(map[string][]TimeRow)}
	var errs []error

	nodes, err := loadNodes(filepath.Join(dir, "node.csv"))
	if err != nil {
		errs = append(errs, err)
	}
	t.Nodes = nodes

	links, err := loadLinks(filepath.Join(dir, "link.csv"))
	if err != nil {
		errs = append(errs, err)
	}
	t.Links = links

	for _, name := range nodeTypeFiles {
		if rows, err := loadStatic(filepath.Join(dir, name+"_static.csv")); err == nil {
			t.Static[name] = rows
		} else if !os.IsNotExist(err) {
			errs = append(errs, err)
		}
		if rows, err := loadTime(filepath.Join(dir, name+"_time.csv")); err == nil {
			t.Time[name] = rows
		} else if !os.IsNotExist(err) {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return nil, chk.Err("schema: %d error(s) loading %q: %v", len(errs), dir, errs)
	}
	return t, nil
}

func openCSV(path string) (*csv.Reader, *os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	return csv.NewReader(f), f, nil
}

func loadNodes(path string) ([]NodeRow, error) {
	r, f, err := openCSV(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	rows, err := r.ReadAll()
	if err != nil {
		return nil, chk.Err("schema: reading %q: %v", path, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	header := rows[0]
	col := indexHeader(header)
	var out []NodeRow
	for _, rec := range rows[1:] {
		row := NodeRow{}
		row.NodeId = mustInt32(rec, col, "node_id")
		row.NodeType = field(rec, col, "node_type")
		if v, ok := col["subnetwork_id"]; ok && rec[v] != "" {
			row.SubnetworkId = mustInt32(rec, col, "subnetwork_id")
			row.HasSubnetwork = true
		}
		row.CyclicTime = field(rec, col, "cyclic_time") == "true"
		if v, ok := col["source_priority"]; ok && rec[v] != "" {
			row.SourcePriority = mustInt32(rec, col, "source_priority")
			row.HasSourcePriority = true
		}
		out = append(out, row)
	}
	return out, nil
}

func loadLinks(path string) ([]LinkRow, error) {
	r, f, err := openCSV(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	rows, err := r.ReadAll()
	if err != nil {
		return nil, chk.Err("schema: reading %q: %v", path, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	col := indexHeader(rows[0])
	var out []LinkRow
	for _, rec := range rows[1:] {
		out = append(out, LinkRow{
			LinkId:             mustInt32(rec, col, "link_id"),
			FromNodeId:         mustInt32(rec, col, "from_node_id"),
			ToNodeId:           mustInt32(rec, col, "to_node_id"),
			LinkType:           field(rec, col, "link_type"),
			SubnetworkIdSource: mustInt32(rec, col, "subnetwork_id_source"),
		})
	}
	return out, nil
}

func loadStatic(path string) ([]StaticRow, error) {
	r, f, err := openCSV(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	rows, err := r.ReadAll()
	if err != nil {
		return nil, chk.Err("schema: reading %q: %v", path, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	header := rows[0]
	var out []StaticRow
	for _, rec := range rows[1:] {
		values := make(map[string]string, len(header))
		for i, h := range header {
			if i < len(rec) {
				values[h] = rec[i]
			}
		}
		id, _ := strconv.ParseInt(values["node_id"], 10, 32)
		out = append(out, StaticRow{NodeId: int32(id), Values: values})
	}
	return out, nil
}

func loadTime(path string) ([]TimeRow, error) {
	r, f, err := openCSV(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	rows, err := r.ReadAll()
	if err != nil {
		return nil, chk.Err("schema: reading %q: %v", path, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	header := rows[0]
	var out []TimeRow
	for _, rec := range rows[1:] {
		values := make(map[string]string, len(header))
		for i, h := range header {
			if i < len(rec) {
				values[h] = rec[i]
			}
		}
		id, _ := strconv.ParseInt(values["node_id"], 10, 32)
		t, _ := strconv.ParseFloat(values["time"], 64)
		out = append(out, TimeRow{NodeId: int32(id), Time: t, Values: values})
	}
	return out, nil
}

func indexHeader(header []string) map[string]int {
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[h] = i
	}
	return col
}

func field(rec []string, col map[string]int, name string) string {
	if i, ok := col[name]; ok && i < len(rec) {
		return rec[i]
	}
	return ""
}

func mustInt32(rec []string, col map[string]int, name string) int32 {
	v, err := strconv.ParseInt(field(rec, col, name), 10, 32)
	if err != nil {
		return 0
	}
	return int32(v)
}
