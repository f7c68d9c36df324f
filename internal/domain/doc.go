// Package domain models daily automated weather-station observations and the
// value types shared by the loader, validator, and quality engine.
//
// # Data Source
//
// Station exports are semicolon-delimited text files produced by national
// meteorological services (the defaults follow the INMET daily export). Each
// file starts with a fixed-size metadata block followed by a column header
// row and one row per calendar day:
//
//	Nome: BRASILIA
//	Codigo Estacao: A001
//	Latitude: -15.78944444
//	Longitude: -47.92583332
//	Altitude: 1160.96
//	Situacao: Operante
//	Data Inicial: 2020-01-01
//	Data Final: 2020-12-31
//	Periodicidade da Medicao: Diaria
//
//	Data Medicao;PRECIPITACAO TOTAL, DIARIO (AUT)(mm);...;
//	2020-01-01;12,4;...;
//
// # Conventions
//
// Field delimiter and decimal separator are independent: fields split on ";"
// while numbers use "," as the decimal point. Some exports drop the leading
// digit of values below one, so ",5" means 0.5.
//
// Missing values appear as "null", "NULL", "None", "nan", "NaN", or an empty
// field. Rows usually end with a trailing delimiter, which yields an unnamed
// column that is entirely empty and gets dropped on load.
//
// Dates use the ISO calendar layout "2006-01-02". The date column is renamed
// to [DateColumn] so every consumer addresses it the same way.
//
// # Nullability
//
// Variable values are [NullFloat] and dates are [NullTime]. A null is never
// represented by zero or NaN, so completeness is always computed from the
// Valid flags.
package domain
