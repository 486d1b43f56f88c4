package service

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"carnet/internal/contact/store"
	dErrors "carnet/pkg/domain-errors"
)

type ImportSuite struct {
	suite.Suite
	svc *Service
	ctx context.Context
}

func TestImportSuite(t *testing.T) {
	suite.Run(t, new(ImportSuite))
}

func (s *ImportSuite) SetupTest() {
	s.ctx = context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.svc = New(store.NewMemory(), WithClock(func() time.Time { return now }))
}

func (s *ImportSuite) importCSV(csv string) *ImportSummary {
	summary, err := s.svc.ImportCSV(s.ctx, strings.NewReader(csv))
	s.Require().NoError(err)
	return summary
}

func (s *ImportSuite) TestReconciliation() {
	s.Run("invalid and duplicate rows are counted, valid rows inserted", func() {
		// Row 2 has a broken email, row 3 reuses row 1's phone.
		csv := "name;email;phone;avatar\n" +
			"Émile;emile@x.com;0611111111;\n" +
			"Broken;not-an-email;0622222222;\n" +
			"Phone Thief;thief@x.com;0611111111;\n" +
			"Zoé;zoe@x.com;0633333333;\n" +
			"Anna;anna@x.com;0644444444;\n"

		summary := s.importCSV(csv)
		s.Equal(3, summary.Imported)
		s.Equal(2, summary.Ignored)

		page, err := s.svc.List(s.ctx, 1, 10)
		s.Require().NoError(err)
		s.Require().Len(page.Items, 3)
		s.Equal("Anna", page.Items[0].Name)
		s.Equal("Émile", page.Items[1].Name)
		s.Equal("Zoé", page.Items[2].Name)
	})

	s.Run("rows colliding with persisted contacts are ignored", func() {
		// emile@x.com persisted above; case variant must still collide.
		csv := "name;email;phone;avatar\n" +
			"Imposter;EMILE@X.COM;0655555555;\n" +
			"Fresh;fresh@x.com;0666666666;\n"

		summary := s.importCSV(csv)
		s.Equal(1, summary.Imported)
		s.Equal(1, summary.Ignored)
	})
}

func (s *ImportSuite) TestBatchInternalDedupe() {
	s.Run("first occurrence wins on email", func() {
		csv := "name;email;phone;avatar\n" +
			"Keeper;dup@x.com;0611111111;\n" +
			"Loser;DUP@x.com;0622222222;\n"

		summary := s.importCSV(csv)
		s.Equal(1, summary.Imported)
		s.Equal(1, summary.Ignored)

		page, err := s.svc.Search(s.ctx, "dup@x.com", 1, 5)
		s.Require().NoError(err)
		s.Require().Len(page.Items, 1)
		s.Equal("Keeper", page.Items[0].Name)
	})

	s.Run("first occurrence wins on phone", func() {
		csv := "name;email;phone;avatar\n" +
			"Keeper Two;k2@x.com;0633333333;\n" +
			"Loser Two;l2@x.com;0633333333;\n"

		summary := s.importCSV(csv)
		s.Equal(1, summary.Imported)
		s.Equal(1, summary.Ignored)
	})
}

func (s *ImportSuite) TestRowValidation() {
	s.Run("blank names are ignored", func() {
		csv := "name;email;phone;avatar\n" +
			";noname@x.com;0611111111;\n" +
			"   ;alsonone@x.com;0622222222;\n" +
			"Named;named@x.com;0633333333;\n"

		summary := s.importCSV(csv)
		s.Equal(1, summary.Imported)
		s.Equal(2, summary.Ignored)
	})

	s.Run("all rows rejected still succeeds with zero imported", func() {
		csv := "name;email;phone;avatar\n" +
			"Bad Email;broken;0644444444;\n" +
			"Bad Phone;ok@x.com;not-a-phone;\n"

		summary := s.importCSV(csv)
		s.Equal(0, summary.Imported)
		s.Equal(2, summary.Ignored)
	})

	s.Run("empty file imports nothing", func() {
		summary := s.importCSV("")
		s.Equal(0, summary.Imported)
		s.Equal(0, summary.Ignored)
	})
}

func (s *ImportSuite) TestStructuralFailure() {
	// Unbalanced quote makes the stream unparseable; nothing may be inserted.
	csv := "name;email;phone;avatar\n" +
		"Fine;fine@x.com;0611111111;\n" +
		"\"Broken;bad@x.com;0622222222;\n"

	_, err := s.svc.ImportCSV(s.ctx, strings.NewReader(csv))
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))

	page, listErr := s.svc.List(s.ctx, 1, 10)
	s.Require().NoError(listErr)
	s.Empty(page.Items, "a structural failure must not partially insert")
}

func (s *ImportSuite) TestAvatarHandling() {
	s.Run("missing avatar column defaults to empty", func() {
		csv := "name;email;phone\n" +
			"No Avatar;na@x.com;0611111111\n"

		summary := s.importCSV(csv)
		s.Equal(1, summary.Imported)

		page, err := s.svc.Search(s.ctx, "na@x.com", 1, 5)
		s.Require().NoError(err)
		s.Require().Len(page.Items, 1)
		s.Equal("", page.Items[0].Avatar)
	})

	s.Run("avatar value carried through", func() {
		// The avatar contains the delimiter, so the field is quoted.
		quoted := "name;email;phone;avatar\n" +
			"Pic;pic@x.com;0622222222;\"data:image/png;base64,abc\"\n"
		summary := s.importCSV(quoted)
		s.Equal(1, summary.Imported)

		page, err := s.svc.Search(s.ctx, "pic@x.com", 1, 5)
		s.Require().NoError(err)
		s.Require().Len(page.Items, 1)
		s.Equal("data:image/png;base64,abc", page.Items[0].Avatar)
	})
}

func (s *ImportSuite) TestExportRoundTrip() {
	seed := []CreateContact{
		{Name: "Émile", Email: "emile@x.com", Phone: "0611111111"},
		{Name: "Zoé", Email: "zoe@x.com", Phone: "0622222222", Avatar: "av"},
		{Name: "Anna", Email: "anna@x.com", Phone: "0633333333"},
	}
	for _, c := range seed {
		_, err := s.svc.Create(s.ctx, c)
		s.Require().NoError(err)
	}

	var buf bytes.Buffer
	s.Require().NoError(s.svc.ExportCSV(s.ctx, &buf))

	s.Run("export carries the BOM and header", func() {
		out := buf.Bytes()
		s.Require().True(len(out) > 3)
		s.Equal([]byte{0xEF, 0xBB, 0xBF}, out[:3])
		s.True(strings.HasPrefix(string(out[3:]), "name;email;phone;avatar\n"))
	})

	s.Run("re-importing an export inserts nothing", func() {
		summary, err := s.svc.ImportCSV(s.ctx, bytes.NewReader(buf.Bytes()))
		s.Require().NoError(err)
		s.Equal(0, summary.Imported)
		s.Equal(len(seed), summary.Ignored)

		page, err := s.svc.List(s.ctx, 1, 10)
		s.Require().NoError(err)
		s.Equal(len(seed), page.Total)
	})

	s.Run("export without BOM when disabled", func() {
		svc := New(store.NewMemory(), WithExportBOM(false))
		_, err := svc.Create(s.ctx, CreateContact{Name: "Solo", Email: "solo@x.com", Phone: "0644444444"})
		s.Require().NoError(err)

		var plain bytes.Buffer
		s.Require().NoError(svc.ExportCSV(s.ctx, &plain))
		s.True(strings.HasPrefix(plain.String(), "name;email;phone;avatar\n"))
	})
}
