package main

import (
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

type GroupReport struct {
	Group      uint32            `json:"group" yaml:"group"`
	TableBlock uint64            `json:"table_block" yaml:"table_block"`
	Offset     uint64            `json:"offset" yaml:"offset"`
	Blocks     uint32            `json:"blocks" yaml:"blocks"`
	Types      map[string]uint32 `json:"types" yaml:"types"`
}

// StatReport is what `dsfs stat` prints.
type StatReport struct {
	BlockSize     uint32            `json:"block_size" yaml:"block_size"`
	NumBlocks     uint32            `json:"num_blocks" yaml:"num_blocks"`
	BlocksInGroup uint32            `json:"blocks_in_group" yaml:"blocks_in_group"`
	NumGroups     uint32            `json:"num_groups" yaml:"num_groups"`
	Types         map[string]uint64 `json:"types" yaml:"types"`
	Groups        []GroupReport     `json:"groups" yaml:"groups"`
}

func NewStatReport(fs *Dsfs) (*StatReport, error) {
	usage, err := fs.Stat()
	if err != nil {
		return nil, err
	}
	geo := fs.Geometry()
	r := &StatReport{
		BlockSize:     geo.BlockSize,
		NumBlocks:     geo.NumBlocks,
		BlocksInGroup: geo.BlocksInGroup,
		NumGroups:     geo.NumGroups,
		Types:         map[string]uint64{},
	}
	for t, n := range usage.Counts {
		r.Types[t.String()] = n
	}
	for group := uint32(0); group < geo.NumGroups; group++ {
		bt, err := fs.Table(group)
		if err != nil {
			return nil, err
		}
		gr := GroupReport{
			Group:      group,
			TableBlock: bt.BlockIndex(),
			Offset:     bt.Offset(),
			Blocks:     geo.RealBlocks(group),
			Types:      map[string]uint32{},
		}
		for t, n := range bt.Count(gr.Blocks) {
			gr.Types[t.String()] = n
		}
		r.Groups = append(r.Groups, gr)
	}
	return r, nil
}

func (r *StatReport) Format(format string) (string, error) {
	switch format {
	case "json":
		return JsonStringify(r), nil
	case "yaml", "":
		b, err := yaml.Marshal(r)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
	return "", errors.Wrap(ErrUnknownFormat, format)
}
