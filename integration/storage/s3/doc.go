// Package s3 stores objects in Amazon S3 or an S3-compatible service such
// as MinIO.
//
//	st, err := s3.New(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	obj, err := st.Put(ctx, "users/42/idimages/front/id_front_20260301120000.jpg", body, "image/jpeg")
//
// Static credentials are optional; without them the default AWS credential
// chain applies. Set Endpoint and ForcePathStyle for MinIO.
package s3
