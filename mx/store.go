package mx

import (
	"fmt"

	"github.com/arloliu/go-mxpsu/protocol"
)

// MaxStoreIndex is the highest setting store on the instrument. Stores are
// numbered from 0.
const MaxStoreIndex = 49

func checkStoreIndex(index int) error {
	if index < 0 || index > MaxStoreIndex {
		return protocol.InvalidParameterf("store index %d out of range [0, %d]", index, MaxStoreIndex)
	}

	return nil
}

// Save saves the present settings of ch to store index.
func (p *PowerSupply) Save(ch, index int) error {
	if err := checkChannel(ch); err != nil {
		return err
	}
	if err := checkStoreIndex(index); err != nil {
		return err
	}

	return p.exec.Execute(fmt.Sprintf("SAV%d %d", ch, index))
}

// Recall recalls the settings of ch from store index.
func (p *PowerSupply) Recall(ch, index int) error {
	if err := checkChannel(ch); err != nil {
		return err
	}
	if err := checkStoreIndex(index); err != nil {
		return err
	}

	return p.exec.Execute(fmt.Sprintf("RCL%d %d", ch, index))
}

// SaveAll saves the settings of all outputs to store index.
func (p *PowerSupply) SaveAll(index int) error {
	if err := checkStoreIndex(index); err != nil {
		return err
	}

	return p.exec.Execute(fmt.Sprintf("*SAV %d", index))
}

// RecallAll recalls the settings of all outputs from store index.
func (p *PowerSupply) RecallAll(index int) error {
	if err := checkStoreIndex(index); err != nil {
		return err
	}

	return p.exec.Execute(fmt.Sprintf("*RCL %d", index))
}
