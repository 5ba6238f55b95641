// Package student содержит доменную модель ученика академии.
//
// Пакет определяет агрегат Student, который загружается целиком вместе с
// посещениями (Attendance), записями на курсы (Enrollment) и вложенным
// прогрессом: техники, челленджи и аттестации. Агрегат только читается
// движком достижений, поэтому в нём нет методов изменения состояния.
//
// # Репозиторий
//
// Repository реализуется в infrastructure/persistence/postgres и
// infrastructure/persistence/memory:
//
//	st, err := repo.GetByID(ctx, studentID)
//	if errors.Is(err, shared.ErrStudentNotFound) {
//	    // ученик не найден
//	}
//
// Вспомогательные методы AllTechniqueProgress, AllChallengeProgress и
// AllEvaluations собирают записи со всех курсов и безопасны для nil.
package student
