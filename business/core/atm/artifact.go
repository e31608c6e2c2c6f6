package atm

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// DefaultAddress is the address the Assessment contract receives when it is
// the first deployment on a fresh development node.
const DefaultAddress = "0x5FbDB2315678afecb367f032d93F642f64180aa3"

//go:embed assessment.json
var assessment []byte

// Artifact represents the compiler output describing a contract.
type Artifact struct {
	ContractName string          `json:"contractName"`
	ABI          json.RawMessage `json:"abi"`
}

// ParseArtifact decodes a compiler artifact and parses its ABI.
func ParseArtifact(data []byte) (abi.ABI, error) {
	var art Artifact
	if err := json.Unmarshal(data, &art); err != nil {
		return abi.ABI{}, fmt.Errorf("decoding artifact: %w", err)
	}

	if len(art.ABI) == 0 {
		return abi.ABI{}, fmt.Errorf("artifact %q has no abi", art.ContractName)
	}

	parsed, err := abi.JSON(bytes.NewReader(art.ABI))
	if err != nil {
		return abi.ABI{}, fmt.Errorf("parsing abi for %q: %w", art.ContractName, err)
	}

	return parsed, nil
}

// LoadArtifact reads and parses the artifact file at the specified path.
// An empty path returns the ABI of the embedded Assessment artifact.
func LoadArtifact(path string) (abi.ABI, error) {
	if path == "" {
		return ParseArtifact(assessment)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return abi.ABI{}, fmt.Errorf("reading artifact: %w", err)
	}

	return ParseArtifact(data)
}

// AssessmentABI returns the ABI of the embedded Assessment artifact.
func AssessmentABI() abi.ABI {
	parsed, err := ParseArtifact(assessment)
	if err != nil {
		panic(err)
	}
	return parsed
}
