package services

import "matchroom_server/models"

// DemoCatalog seeds StaticCandidateSource when no S3 catalog is configured.
func DemoCatalog() map[string][]models.Candidate {
	return map[string][]models.Candidate{
		models.KindMovie: {
			{ID: "m-603", Title: "The Matrix", PosterPath: "movie/m-603.jpg", ReleaseDate: "1999-03-31", Tags: []string{"action", "scifi"}},
			{ID: "m-105", Title: "Back to the Future", PosterPath: "movie/m-105.jpg", ReleaseDate: "1985-07-03", Tags: []string{"comedy", "scifi"}},
			{ID: "m-862", Title: "Toy Story", PosterPath: "movie/m-862.jpg", ReleaseDate: "1995-11-22", Tags: []string{"animation", "comedy", "family"}},
			{ID: "m-120", Title: "The Fellowship of the Ring", PosterPath: "movie/m-120.jpg", ReleaseDate: "2001-12-18", Tags: []string{"adventure", "fantasy"}},
			{ID: "m-680", Title: "Pulp Fiction", PosterPath: "movie/m-680.jpg", ReleaseDate: "1994-09-10", Tags: []string{"crime", "drama"}},
			{ID: "m-13", Title: "Forrest Gump", PosterPath: "movie/m-13.jpg", ReleaseDate: "1994-06-23", Tags: []string{"comedy", "drama"}},
			{ID: "m-27205", Title: "Inception", PosterPath: "movie/m-27205.jpg", ReleaseDate: "2010-07-15", Tags: []string{"action", "scifi"}},
			{ID: "m-129", Title: "Spirited Away", PosterPath: "movie/m-129.jpg", ReleaseDate: "2001-07-20", Tags: []string{"animation", "family", "fantasy"}},
		},
		models.KindTV: {
			{ID: "tv-1396", Title: "Breaking Bad", PosterPath: "tv/tv-1396.jpg", ReleaseDate: "2008-01-20", Tags: []string{"crime", "drama"}},
			{ID: "tv-2316", Title: "The Office", PosterPath: "tv/tv-2316.jpg", ReleaseDate: "2005-03-24", Tags: []string{"comedy"}},
			{ID: "tv-66732", Title: "Stranger Things", PosterPath: "tv/tv-66732.jpg", ReleaseDate: "2016-07-15", Tags: []string{"drama", "scifi"}},
			{ID: "tv-1399", Title: "Game of Thrones", PosterPath: "tv/tv-1399.jpg", ReleaseDate: "2011-04-17", Tags: []string{"drama", "fantasy"}},
			{ID: "tv-4607", Title: "Lost", PosterPath: "tv/tv-4607.jpg", ReleaseDate: "2004-09-22", Tags: []string{"drama", "scifi"}},
		},
	}
}
