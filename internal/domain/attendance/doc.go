// Package attendance contains the domain model of the Attendio bot.
//
// The package defines:
//
//   - Entities: User, Course, AttendanceResult, SafeSkipEntry
//   - Policy: ComputePercentage, AdvicePolicy (classes needed / classes left), SafeToSkip
//   - The row codec that maps record-store rows onto users and courses
//   - Contracts implemented in infrastructure: RecordStore, Locker
//
// # Row model
//
// Every course is one row of the record store. A user without courses is a row
// with empty Course Code and Course Nickname columns. User attributes (name,
// phone, chat id) are duplicated on every row of the user.
//
//	row := attendance.EncodeCourse(user, course)
//	course, ok := attendance.DecodeCourse(storeRow)
//
// # Policy
//
// The percentage of an empty history is 100. Advice is computed with exact
// integer arithmetic against an integer reference percentage:
//
//	p := attendance.AdvicePolicy{ThresholdPercent: 80}
//	p.ClassesNeeded(2, 3) // 10
//	p.ClassesLeft(20, 1)  // 4
//
// The package has no storage or transport dependencies.
package attendance
