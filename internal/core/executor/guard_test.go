package executor

import (
	"errors"
	"testing"

	"github.com/mohammed-shakir/spacetime-gateway/internal/core/model"
)

func TestCheckReadOnly_Rejects(t *testing.T) {
	cases := []string{
		"DROP TABLE tblCHL_REP",
		"drop table tblCHL_REP",
		"DeLeTe from tblCHL_REP where lat > 0",
		"select 1; insert into t values (1)",
		"update t set x = 1",
		"alter table t add y float",
		"exec sp_whatever",
	}
	for _, q := range cases {
		if err := CheckReadOnly(q); !errors.Is(err, model.ErrForbiddenStatement) {
			t.Errorf("CheckReadOnly(%q) = %v, want ErrForbiddenStatement", q, err)
		}
	}
}

func TestCheckReadOnly_Allows(t *testing.T) {
	cases := []string{
		"select top 10 [time], lat, lon, chl from tblCHL_REP where lat between 10 and 20",
		"select * from dbo.udfCatalog() order by Table_Name",
		// keywords embedded in identifiers are not statements
		"select dropout_rate, last_update from tblStations",
	}
	for _, q := range cases {
		if err := CheckReadOnly(q); err != nil {
			t.Errorf("CheckReadOnly(%q) = %v, want nil", q, err)
		}
	}
}
