package analytics

import (
	"strconv"

	"github.com/noah-isme/lecture-intel-api/pkg/export"
)

// CSVHeaders is the fixed feedback export header.
var CSVHeaders = []string{"ID", "Lecture", "Course", "Student", "Rating", "Comment", "Date", "Resolved"}

// CSVDataset turns views into one export row each, in order.
func CSVDataset(views []FeedbackView) export.Dataset {
	rows := make([]map[string]string, 0, len(views))
	for _, v := range views {
		resolved := "No"
		if v.Resolved {
			resolved = "Yes"
		}
		rows = append(rows, map[string]string{
			"ID":       v.ID,
			"Lecture":  v.LectureTitle,
			"Course":   v.CourseCode,
			"Student":  v.StudentName,
			"Rating":   strconv.Itoa(v.Rating),
			"Comment":  v.Comment,
			"Date":     dayKey(v.Timestamp),
			"Resolved": resolved,
		})
	}
	return export.Dataset{Title: "Feedback", Headers: CSVHeaders, Rows: rows}
}
