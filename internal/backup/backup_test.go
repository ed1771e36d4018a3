package backup

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/aanand-mishra/student-archive/internal/storage/local"
	"github.com/aanand-mishra/student-archive/internal/storage/sqlite"
	"github.com/aanand-mishra/student-archive/internal/types"
)

var (
	ahmad = types.StudentInput{Name: "Ahmad", MotherName: "Fatima", RegistrationNumber: "2023001", PageNumber: "12"}
	sara  = types.StudentInput{Name: "Sara", MotherName: "Zainab", RegistrationNumber: "2023002", PageNumber: "15"}
)

func TestFilename(t *testing.T) {
	ts := time.Date(2026, 3, 9, 22, 0, 0, 0, time.UTC)
	require.Equal(t, "students_backup_2026-03-09.json", Filename(ts))
}

func TestExportWritesIndentedList(t *testing.T) {
	ctx := context.Background()
	s := local.New()

	var buf bytes.Buffer
	require.NoError(t, Export(ctx, s, &buf))
	require.Equal(t, "[]\n", buf.String())

	a, err := s.CreateStudent(ctx, ahmad)
	require.NoError(t, err)

	buf.Reset()
	require.NoError(t, Export(ctx, s, &buf))
	require.Contains(t, buf.String(), "\n  {\n    \"id\": \""+a.ID+"\"")

	var got []types.Student
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	require.Equal(t, []types.Student{a}, got)
}

func TestRestoreMergesByID(t *testing.T) {
	ctx := context.Background()
	src := local.New()
	_, err := src.CreateStudent(ctx, ahmad)
	require.NoError(t, err)
	time.Sleep(3 * time.Millisecond)
	_, err = src.CreateStudent(ctx, sara)
	require.NoError(t, err)

	want, err := src.ListStudents(ctx)
	require.NoError(t, err)

	var doc bytes.Buffer
	require.NoError(t, Export(ctx, src, &doc))

	dst := local.New()
	res, err := Restore(ctx, dst, bytes.NewReader(doc.Bytes()))
	require.NoError(t, err)
	require.Equal(t, RestoreResult{Restored: 2}, res)

	// a second pass finds every id already there
	res, err = Restore(ctx, dst, bytes.NewReader(doc.Bytes()))
	require.NoError(t, err)
	require.Equal(t, RestoreResult{Skipped: 2}, res)

	got, err := dst.ListStudents(ctx)
	require.NoError(t, err)
	require.Equal(t, want, got)

	res, err = Restore(ctx, src, bytes.NewReader(doc.Bytes()))
	require.NoError(t, err)
	require.Equal(t, RestoreResult{Skipped: 2}, res)
}

func TestRestoreKeepsIdentityOnSQLite(t *testing.T) {
	ctx := context.Background()
	dst, err := sqlite.New(filepath.Join(t.TempDir(), "students.db"))
	require.NoError(t, err)
	defer dst.Close()

	doc := `[
		{"id":"b-2","createdAt":2000,"name":"Sara","motherName":"Zainab","registrationNumber":"2023002","pageNumber":"15"},
		{"id":"a-1","createdAt":1000,"name":"Ahmad","motherName":"Fatima","registrationNumber":"2023001","pageNumber":"12"}
	]`
	for _, want := range []RestoreResult{{Restored: 2}, {Skipped: 2}} {
		res, err := Restore(ctx, dst, strings.NewReader(doc))
		require.NoError(t, err)
		require.Equal(t, want, res)
	}

	list, err := dst.ListStudents(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "b-2", list[0].ID)
	require.Equal(t, int64(2000), list[0].CreatedAt)
	require.Equal(t, "a-1", list[1].ID)
	require.Equal(t, int64(1000), list[1].CreatedAt)
}

func TestRestoreWithoutIDCreates(t *testing.T) {
	ctx := context.Background()
	dst := local.New()

	doc := `[{"name":"Ahmad","motherName":"Fatima","registrationNumber":"2023001","pageNumber":"12"}]`
	res, err := Restore(ctx, dst, strings.NewReader(doc))
	require.NoError(t, err)
	require.Equal(t, RestoreResult{Restored: 1}, res)

	list, err := dst.ListStudents(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.NotEmpty(t, list[0].ID)
	require.NotZero(t, list[0].CreatedAt)
}

func TestRestoreRejectsBadDocuments(t *testing.T) {
	docs := map[string]string{
		"empty":          "",
		"object":         `{"students":[]}`,
		"string":         `"hello"`,
		"not json":       `[{"name":`,
		"wrong type":     `[{"name":5,"motherName":"x","registrationNumber":"1","pageNumber":"2"}]`,
		"missing field":  `[{"name":"Omar","motherName":"Maryam","registrationNumber":"1"}]`,
		"scalar element": `[1]`,
	}
	for name, doc := range docs {
		t.Run(name, func(t *testing.T) {
			s := local.New()
			_, err := Restore(context.Background(), s, strings.NewReader(doc))
			require.ErrorIs(t, err, ErrImportFormat)

			list, err := s.ListStudents(context.Background())
			require.NoError(t, err)
			require.Empty(t, list)
		})
	}
}

func TestRestoreIsAllOrNothingOnFormat(t *testing.T) {
	s := local.New()
	doc := `[{"name":"Ahmad","motherName":"Fatima","registrationNumber":"1","pageNumber":"2"},{"name":""}]`
	_, err := Restore(context.Background(), s, strings.NewReader(doc))
	require.ErrorIs(t, err, ErrImportFormat)

	list, err := s.ListStudents(context.Background())
	require.NoError(t, err)
	require.Empty(t, list)
}

func TestImportSheetCSV(t *testing.T) {
	s := local.New()
	data := "name,mother,reg,page\n" +
		"Ahmad,Fatima,2023001,12\n" +
		",Zainab,2023002,15\n"

	res, err := ImportSheet(context.Background(), s, strings.NewReader(data), FormatCSV)
	require.NoError(t, err)
	require.Equal(t, SheetResult{Imported: 1}, res)

	list, err := s.ListStudents(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "Ahmad", list[0].Name)
	require.Equal(t, "2023001", list[0].RegistrationNumber)
}

func TestImportSheetCountsRejectedRows(t *testing.T) {
	s := local.New()
	data := "name,mother,reg,page\n" +
		"Ahmad,Fatima,2023001,12\n" +
		"Sara,Zainab\n"

	res, err := ImportSheet(context.Background(), s, strings.NewReader(data), FormatCSV)
	require.NoError(t, err)
	require.Equal(t, SheetResult{Imported: 1, Rejected: 1}, res)
}

func TestImportSheetNoData(t *testing.T) {
	s := local.New()
	_, err := ImportSheet(context.Background(), s, strings.NewReader("name,mother\n,\n"), FormatCSV)
	require.ErrorIs(t, err, ErrNoData)

	_, err = ImportSheet(context.Background(), s, strings.NewReader(""), FormatCSV)
	require.ErrorIs(t, err, ErrNoData)
}

func TestImportSheetXLSX(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]any{"Name", "Mother", "Registration", "Page"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]any{"Ahmad", "Fatima", 2023001, 12}))
	require.NoError(t, f.SetSheetRow(sheet, "A3", &[]any{"", "Zainab", 2023002, 15}))
	require.NoError(t, f.SetSheetRow(sheet, "A4", &[]any{"Omar", "Maryam", 2023003, 18}))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	require.NoError(t, f.Close())

	s := local.New()
	res, err := ImportSheet(context.Background(), s, buf, FormatXLSX)
	require.NoError(t, err)
	require.Equal(t, 2, res.Imported)

	got, err := s.SearchStudents(context.Background(), "2023003")
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "Omar", got[0].Name)
	require.Equal(t, "18", got[0].PageNumber)
}

func TestImportSheetRejectsGarbageWorkbook(t *testing.T) {
	_, err := ImportSheet(context.Background(), local.New(), strings.NewReader("not a zip"), FormatXLSX)
	require.ErrorIs(t, err, ErrImportFormat)
}

func TestFormatFromFilename(t *testing.T) {
	f, err := FormatFromFilename("Students.XLSX")
	require.NoError(t, err)
	require.Equal(t, FormatXLSX, f)

	f, err = FormatFromFilename("list.csv")
	require.NoError(t, err)
	require.Equal(t, FormatCSV, f)

	_, err = FormatFromFilename("photo.png")
	require.ErrorIs(t, err, ErrImportFormat)
}
