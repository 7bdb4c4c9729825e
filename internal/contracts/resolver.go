package contracts

import (
	"os"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

// defaultTable maps chart tickers to ProjectX contract ids.
var defaultTable = map[string]string{
	"MES1!": "CON.F.US.MES.M25", "MNQ1!": "CON.F.US.MNQ.M25", "MYM1!": "CON.F.US.MYM.M25",
	"M2KM25": "CON.F.US.M2K.M25", "ESM25": "CON.F.US.ES.M25", "NQM25": "CON.F.US.NQ.M25",
	"YMM25": "CON.F.US.YM.M25", "RTYM25": "CON.F.US.RTY.M25", "MCLN25": "CON.F.US.MCL.M25",
	"CL1!": "CON.F.US.CLE.M25", "CLN25": "CON.F.US.CLE.M25", "GC1!": "CON.F.US.MGC.M25",
	"MGC1!": "CON.F.US.MGC.M25", "SILN25": "CON.F.US.SI.M25", "GCM25": "CON.F.US.GC.M25",
	"PLN25": "CON.F.US.PL.M25", "MHGN25": "CON.F.US.MHG.M25", "HGN25": "CON.F.US.HG.M25",
	"MNGM25": "CON.F.US.MNG.M25", "NGM25": "CON.F.US.NG.M25", "RBN25": "CON.F.US.RB.M25",
	"HEM25": "CON.F.US.HE.M25", "LEQ25": "CON.F.US.LE.M25", "HON25": "CON.F.US.HO.M25",
	"METK25": "CON.F.US.MET.M25", "MBTK25": "CON.F.US.MBT.M25", "6AM25": "CON.F.US.6A.M25",
	"6BM25": "CON.F.US.6B.M25", "6CM25": "CON.F.US.6C.M25", "6EM25": "CON.F.US.6E.M25",
	"6JM25": "CON.F.US.6J.M25", "6MM25": "CON.F.US.6M.M25", "6NM25": "CON.F.US.6N.M25",
	"6SM25": "CON.F.US.6S.M25", "M6AM25": "CON.F.US.M6A.M25", "M6BM25": "CON.F.US.M6B.M25",
	"M6EM25": "CON.F.US.M6E.M25", "UBM25": "CON.F.US.UB.M25", "TNM25": "CON.F.US.TN.M25",
	"ZBM25": "CON.F.US.ZB.M25", "ZFM25": "CON.F.US.ZF.M25", "ZNM25": "CON.F.US.ZN.M25",
	"ZTM25": "CON.F.US.ZT.M25", "ZCN25": "CON.F.US.ZC.M25", "ZWN25": "CON.F.US.ZW.M25",
	"ZSN25": "CON.F.US.ZS.M25", "ZLN25": "CON.F.US.ZL.M25", "ZMN25": "CON.F.US.ZM.M25",
	"SIN25": "CON.F.US.SI.M25", "E7M25": "CON.F.US.E7.M25", "QGM25": "CON.F.US.QG.M25",
	"NKDM25": "CON.F.US.NKD.M25",
}

// Resolver is a read-only symbol -> contract id table.
type Resolver struct {
	table map[string]string
}

// NewResolver copies the built-in table and applies overrides on top.
func NewResolver(overrides map[string]string) *Resolver {
	table := make(map[string]string, len(defaultTable)+len(overrides))
	for k, v := range defaultTable {
		table[k] = v
	}
	for k, v := range overrides {
		k, v = strings.TrimSpace(k), strings.TrimSpace(v)
		if k == "" || v == "" {
			continue
		}
		table[k] = v
	}
	return &Resolver{table: table}
}

// LoadFile reads a yaml map of symbol: contract_id. An empty path means no overrides.
func LoadFile(path string) (*Resolver, error) {
	if path == "" {
		return NewResolver(nil), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewResolver(nil), nil
		}
		return nil, errors.Wrapf(err, "read contracts file %s", path)
	}
	overrides := map[string]string{}
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return nil, errors.Wrapf(err, "decode contracts file %s", path)
	}
	return NewResolver(overrides), nil
}

// Resolve returns the contract id for symbol; unknown symbols are assumed to
// already be contract ids.
func (r *Resolver) Resolve(symbol string) string {
	if id, ok := r.table[symbol]; ok {
		return id
	}
	return symbol
}

func (r *Resolver) Len() int { return len(r.table) }
